package command

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/rs/zerolog"
)

// Greeting is the reply to an empty AI-chat command.
const Greeting = "您好！我是AI助手川小农，请问有什么可以帮助您的吗？"

// Reply sources reported in AIPayload.Source.
const (
	SourceGreeting = "greeting"
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// Replier is one strategy for answering a question.
type Replier interface {
	Reply(ctx context.Context, question string) (string, error)
}

// AIPayload is the result of the AI-chat command.
type AIPayload struct {
	Question  string `json:"question"`
	ReplyText string `json:"reply_text"`
	Source    string `json:"source"`
}

// AIHandler asks Remote first and falls back to Fallback when the remote call fails,
// so conversational input never surfaces an error.
type AIHandler struct {
	Remote        Replier
	Fallback      Replier
	RemoteTimeout time.Duration
	Log           *zerolog.Logger
}

func (AIHandler) Kind() Kind             { return KindAI }
func (AIHandler) ArgumentRequired() bool { return false }

func (h AIHandler) Invoke(ctx context.Context, arg string) (any, error) {
	question := strings.TrimSpace(arg)
	if question == "" {
		return AIPayload{ReplyText: Greeting, Source: SourceGreeting}, nil
	}

	if h.Remote != nil {
		reply, err := h.remoteReply(ctx, question)
		if err == nil {
			return AIPayload{Question: question, ReplyText: reply, Source: SourceRemote}, nil
		}
		if h.Log != nil {
			h.Log.Warn().Err(err).Msg("ai remote failed, using fallback")
		}
	}

	if h.Fallback == nil {
		return nil, userError("抱歉，处理您的问题时遇到了困难。请稍后再试。", errors.New("no ai strategy available"))
	}
	reply, err := h.Fallback.Reply(ctx, question)
	if err != nil {
		return nil, userError("抱歉，处理您的问题时遇到了困难。请稍后再试。", err)
	}
	return AIPayload{Question: question, ReplyText: reply, Source: SourceFallback}, nil
}

func (h AIHandler) remoteReply(ctx context.Context, question string) (string, error) {
	if h.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.RemoteTimeout)
		defer cancel()
	}
	reply, err := h.Remote.Reply(ctx, question)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", errors.New("empty remote reply")
	}
	return reply, nil
}

type replyGroup struct {
	keywords []string
	replies  []string
}

// Groups are listed by priority; when several groups match, the earliest wins.
var fallbackGroups = []replyGroup{
	{
		keywords: []string{"你好", "hi", "hello", "嗨"},
		replies:  []string{"你好！很高兴见到你！", "嗨！有什么可以帮你的吗？", "Hello！How can I help you today?"},
	},
	{
		keywords: []string{"再见", "拜拜", "bye"},
		replies:  []string{"再见！祝您有愉快的一天！", "Bye！期待下次与您交流！", "回头见！"},
	},
	{
		keywords: []string{"名字", "谁", "你是"},
		replies:  []string{"我是川小农，一个AI助手，很高兴为您服务！"},
	},
	{
		keywords: []string{"帮助", "怎么用", "使用"},
		replies:  []string{"您可以使用以下指令：\n1. @电影 URL - 播放电影\n2. @川小农 问题 - 与我对话\n3. @天气 城市 - 查询天气\n4. @新闻 关键词 - 搜索新闻\n5. @音乐 关键词 - 搜索音乐"},
	},
	{
		keywords: []string{"天气", "气温"},
		replies:  []string{"想查天气的话，试试发送“@天气 城市名”吧！"},
	},
	{
		keywords: []string{"谢谢", "感谢"},
		replies:  []string{"不客气！能够帮助您是我的荣幸！"},
	},
}

var defaultReplies = []string{
	"您好！很高兴为您提供帮助。",
	"这个问题很有趣，让我思考一下...",
	"我理解您的意思，您可以尝试一下...",
	"谢谢您的提问，我会尽力解答。",
	"这个问题我还需要学习，不过我可以试着回答...",
}

// KeywordFallback answers from canned replies selected by keyword. It is deterministic:
// the same question always yields the same reply.
type KeywordFallback struct {
	matcher *goahocorasick.Machine
	groupOf map[string]int
}

// NewKeywordFallback builds the keyword automaton.
func NewKeywordFallback() (*KeywordFallback, error) {
	groupOf := make(map[string]int)
	var patterns [][]rune
	for i, g := range fallbackGroups {
		for _, kw := range g.keywords {
			kw = strings.ToLower(kw)
			if _, dup := groupOf[kw]; dup {
				continue
			}
			groupOf[kw] = i
			patterns = append(patterns, []rune(kw))
		}
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, fmt.Errorf("build keyword matcher: %w", err)
	}
	return &KeywordFallback{matcher: m, groupOf: groupOf}, nil
}

// Reply never fails.
func (f *KeywordFallback) Reply(_ context.Context, question string) (string, error) {
	normalized := strings.ToLower(question)
	best := -1
	for _, term := range f.matcher.MultiPatternSearch([]rune(normalized), false) {
		g, ok := f.groupOf[string(term.Word)]
		if ok && (best == -1 || g < best) {
			best = g
		}
	}
	if best >= 0 {
		return pick(fallbackGroups[best].replies, normalized), nil
	}
	return pick(defaultReplies, normalized), nil
}

func pick(options []string, key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return options[h.Sum32()%uint32(len(options))]
}

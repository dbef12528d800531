package main

import (
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wireroom/internal/app"
	"github.com/vovakirdan/wireroom/internal/history"
)

const bodyPreviewRunes = 60

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent chat events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}

			storage, err := app.OpenStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			log, err := history.Open(cmd.Context(), storage.Events)
			if err != nil {
				return err
			}
			events, err := log.Tail(cmd.Context(), limit)
			if err != nil {
				return err
			}

			table := newTable("Seq", "Time", "Author", "Kind", "Body")
			for _, ev := range events {
				table.Append([]string{
					strconv.FormatInt(ev.Seq, 10),
					ev.CreatedAt.Local().Format("01-02 15:04:05"),
					ev.DisplayName,
					ev.Kind,
					preview(ev.Body),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultReplayLimit, "number of events to print")
	return cmd
}

func newIdentitiesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List registered identities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}

			storage, err := app.OpenStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			identities, err := storage.SQL.ListIdentities(cmd.Context())
			if err != nil {
				return err
			}

			table := newTable("ID", "Username", "Avatar", "Online", "Last login")
			for _, ident := range identities {
				lastLogin := "-"
				if ident.LastLogin != nil {
					lastLogin = ident.LastLogin.Local().Format("2006-01-02 15:04")
				}
				table.Append([]string{
					strconv.FormatInt(ident.ID, 10),
					ident.Username,
					ident.Avatar,
					strconv.FormatBool(ident.IsOnline),
					lastLogin,
				})
			}
			table.Render()
			fmt.Fprintf(os.Stdout, "%d identities\n", len(identities))
			return nil
		},
	}
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= bodyPreviewRunes {
		return body
	}
	return string([]rune(body)[:bodyPreviewRunes]) + "…"
}

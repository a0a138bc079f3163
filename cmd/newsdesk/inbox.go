package main

import (
	"fmt"
	"io"
	"os"

	"github.com/TobiSchelling/newsdesk/internal/cms"
	"github.com/TobiSchelling/newsdesk/internal/content"
	"github.com/spf13/cobra"
)

// --- messages command ---

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Read contact messages",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contact messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		msgs, unread, err := svc.ContactMessages(cmd.Context())
		if err != nil {
			return err
		}
		printMessages(os.Stdout, msgs, unread)
		return nil
	},
}

var messagesReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Mark a contact message as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := svc.MarkRead(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Marked message %s as read\n", args[0])
		return nil
	},
}

var newsletterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List newsletter subscribers, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		subs, active, err := svc.Subscribers(cmd.Context())
		if err != nil {
			return err
		}
		printSubscribers(os.Stdout, subs, active)
		return nil
	},
}

func init() {
	messagesCmd.AddCommand(messagesListCmd)
	messagesCmd.AddCommand(messagesReadCmd)
	newsletterCmd.AddCommand(newsletterListCmd)
	rootCmd.AddCommand(messagesCmd)
}

// --- media command ---

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage videos and podcasts",
}

func mediaStatusCommand(use, short string, status content.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [videos|podcasts] [id]",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseMediaKind(args[0])
			if err != nil {
				return err
			}
			st, svc, err := openWriter(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := svc.SetMediaStatus(cmd.Context(), kind, args[1], status); err != nil {
				return err
			}
			fmt.Printf("%s %s is now %s\n", kind, args[1], status)
			return nil
		},
	}
}

var mediaDeleteCmd = &cobra.Command{
	Use:   "delete [videos|podcasts] [id]",
	Short: "Delete a video or podcast",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseMediaKind(args[0])
		if err != nil {
			return err
		}
		st, svc, err := openWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := svc.DeleteMedia(cmd.Context(), kind, args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s %s\n", kind, args[1])
		return nil
	},
}

func init() {
	mediaCmd.AddCommand(mediaStatusCommand("publish", "Publish a video or podcast", content.StatusPublished))
	mediaCmd.AddCommand(mediaStatusCommand("unpublish", "Return a video or podcast to draft", content.StatusDraft))
	mediaCmd.AddCommand(mediaDeleteCmd)
	rootCmd.AddCommand(mediaCmd)
}

func parseMediaKind(arg string) (content.MediaKind, error) {
	switch arg {
	case "videos", "video":
		return content.MediaVideo, nil
	case "podcasts", "podcast":
		return content.MediaPodcast, nil
	}
	return "", fmt.Errorf("unknown media kind %q (want videos or podcasts)", arg)
}

func printMessages(w io.Writer, msgs []cms.Message, unread int) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages.")
		return
	}
	fmt.Fprintf(w, "%d messages, %d unread\n", len(msgs), unread)
	for _, m := range msgs {
		mark := " "
		if !m.Read {
			mark = "*"
		}
		subject := m.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		fmt.Fprintf(w, "  %s %-36s %-16s %-28s %s\n", mark, m.ID, m.CreatedAt.Format("2006-01-02 15:04"), m.Email, subject)
	}
}

func printSubscribers(w io.Writer, subs []cms.Subscriber, active int) {
	if len(subs) == 0 {
		fmt.Fprintln(w, "No subscribers.")
		return
	}
	fmt.Fprintf(w, "%d subscribers, %d active\n", len(subs), active)
	for _, s := range subs {
		state := "active"
		if !s.Active {
			state = "inactive"
		}
		fmt.Fprintf(w, "  %-36s %-8s %s\n", s.ID, state, s.Email)
	}
}

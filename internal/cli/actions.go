package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/bot"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				a.logger.Info("Logged in", zap.String("account", b.Username()), zap.String("cookies", a.cfg.Account.CookieFile))
				return nil
			})
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				return b.Logout(ctx)
			})
		},
	}
}

type postAction func(b *bot.Bot, ctx context.Context, post types.PostIdentifier) error

// toggleCmd builds like, unlike, save and unsave. Each accepts several posts.
func (a *app) toggleCmd(name, short string, action postAction) *cobra.Command {
	return &cobra.Command{
		Use:   name + " POST...",
		Short: short,
		Long:  short + ". POST is a post id or an instagram.com/p/ URL.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				for _, arg := range args {
					if err := action(b, ctx, types.PostRef(arg)); err != nil {
						return fmt.Errorf("%s %s: %w", name, arg, err)
					}
					a.logger.Info("Done", zap.String("action", name), zap.String("post", arg))
				}
				return nil
			})
		},
	}
}

func (a *app) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment POST TEXT",
		Short: "Comment on a post. Newlines in TEXT are kept.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				return b.Comment(ctx, types.PostRef(args[0]), args[1])
			})
		},
	}
}

func (a *app) shareCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "share POST USER...",
		Short: "Send a post to one or more users by direct message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				return b.SharePost(ctx, types.PostRef(args[0]), args[1:], message)
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message sent with the post")
	return cmd
}

type userAction func(b *bot.Bot, ctx context.Context, username string) error

func (a *app) followCmd(name, short string, action userAction) *cobra.Command {
	return &cobra.Command{
		Use:   name + " USER...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				for _, username := range args {
					if err := action(b, ctx, username); err != nil {
						return fmt.Errorf("%s %s: %w", name, username, err)
					}
				}
				return nil
			})
		},
	}
}

func (a *app) privacyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "privacy [public|private]",
		Short:     "Show or change whether the account is private",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"public", "private"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				if len(args) == 1 {
					return b.SetAccountPrivacy(ctx, args[0] == "private")
				}
				private, err := b.IsAccountPrivate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), privacyLabel(private))
				return nil
			})
		},
	}
}

func privacyLabel(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

func (a *app) postCmd() *cobra.Command {
	var (
		opts            types.PostOptions
		hideLikes       bool
		disableComments bool
	)
	cmd := &cobra.Command{
		Use:   "post FILE...",
		Short: "Publish photos or videos. Several files make a carousel.",
		Long: "Publish photos or videos. Accepted extensions: " +
			strings.Join(bot.MediaExtensions, ", ") + ".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("hide-likes") {
				opts.HideLikes = &hideLikes
			}
			if cmd.Flags().Changed("disable-comments") {
				opts.DisableComments = &disableComments
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				return b.CreatePost(ctx, args, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Caption, "caption", "", "post caption; newlines are kept")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location to search for and tag")
	cmd.Flags().StringVar(&opts.AltText, "alt-text", "", "accessibility text for the media")
	cmd.Flags().BoolVar(&hideLikes, "hide-likes", false, "hide like and view counts")
	cmd.Flags().BoolVar(&disableComments, "disable-comments", false, "turn off commenting")
	return cmd
}

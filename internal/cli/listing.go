package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/freddie-nelson/ig-bot/internal/bot"
	"github.com/freddie-nelson/ig-bot/internal/store"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

func (a *app) postsCmd() *cobra.Command {
	var (
		count   int
		opts    bot.ListOptions
		pinned  bool
		recent  bool
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "posts USER",
		Short: "List the posts on a profile grid, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pinned && recent {
				return fmt.Errorf("--pinned and --recent are mutually exclusive")
			}
			username := args[0]
			return a.withStore(persist, func(st *store.Store) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
					var infos []types.PostInfo
					switch {
					case pinned:
						got, err := b.GetPinnedPosts(ctx, username)
						if err != nil {
							return err
						}
						infos = got
					case recent:
						got, err := b.GetRecentPost(ctx, username)
						if err != nil {
							return err
						}
						if got != nil {
							infos = []types.PostInfo{*got}
						}
					default:
						got, err := b.GetPosts(ctx, username, count, opts)
						if err != nil {
							return err
						}
						infos = got
					}

					if st != nil {
						if err := st.SavePostInfos(uuid.NewString(), username, infos); err != nil {
							return err
						}
					}
					return printJSON(cmd.OutOrStdout(), infos)
				})
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 12, "number of posts to list")
	cmd.Flags().BoolVar(&opts.FilterPinned, "skip-pinned", false, "leave pinned posts out")
	cmd.Flags().BoolVar(&opts.OnlyPinned, "only-pinned", false, "stop at the first post that is not pinned")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "list only the pinned posts")
	cmd.Flags().BoolVar(&recent, "recent", false, "show only the most recent unpinned post")
	cmd.Flags().BoolVar(&persist, "store", false, "also record the listing in the database")
	cmd.MarkFlagsMutuallyExclusive("skip-pinned", "only-pinned")
	return cmd
}

func (a *app) postInfoCmd() *cobra.Command {
	var persist bool
	cmd := &cobra.Command{
		Use:   "post-info POST",
		Short: "Show the details of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(persist, func(st *store.Store) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
					post, err := b.GetPost(ctx, types.PostRef(args[0]))
					if err != nil {
						return err
					}
					if st != nil {
						if err := st.SavePost(post); err != nil {
							return err
						}
					}
					return printJSON(cmd.OutOrStdout(), post)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&persist, "store", false, "also save the post in the database")
	return cmd
}

func (a *app) commentsCmd() *cobra.Command {
	var (
		count   int
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "comments POST",
		Short: "List top-level comments on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(persist, func(st *store.Store) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
					comments, err := b.GetComments(ctx, types.PostRef(args[0]), count)
					if err != nil {
						return err
					}
					if st != nil {
						if err := st.SaveComments(comments); err != nil {
							return err
						}
					}
					return printJSON(cmd.OutOrStdout(), comments)
				})
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 20, "number of comments to list")
	cmd.Flags().BoolVar(&persist, "store", false, "also save the comments in the database")
	return cmd
}

func (a *app) feedCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List posts from the home feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				infos, err := b.GetFeed(ctx, count)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), infos)
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of feed posts to list")
	return cmd
}

type followLister func(b *bot.Bot, ctx context.Context, username string, count int) ([]string, error)

func (a *app) followListCmd(name, short string, list followLister) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   name + " USER",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				users, err := list(b, ctx, args[0], count)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), users)
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 50, "number of accounts to list")
	return cmd
}

func (a *app) userCmd() *cobra.Command {
	var persist bool
	cmd := &cobra.Command{
		Use:   "user USER",
		Short: "Show the public summary of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(persist, func(st *store.Store) error {
				return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
					user, err := b.GetUser(ctx, args[0])
					if err != nil {
						return err
					}
					if st != nil {
						if err := st.SaveUser(user); err != nil {
							return err
						}
					}
					return printJSON(cmd.OutOrStdout(), user)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&persist, "store", false, "also save the summary in the database")
	return cmd
}

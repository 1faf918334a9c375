package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/freddie-nelson/ig-bot/internal/bot"
	"github.com/freddie-nelson/ig-bot/internal/types"
)

func (a *app) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Read or edit the logged-in account's profile",
	}
	cmd.AddCommand(a.profileGetCmd(), a.profileSetCmd())
	return cmd
}

func (a *app) profileGetCmd() *cobra.Command {
	var asTOML bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				profile, err := b.GetProfile(ctx)
				if err != nil {
					return err
				}
				if asTOML {
					return toml.NewEncoder(cmd.OutOrStdout()).Encode(profile)
				}
				return printJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
	cmd.Flags().BoolVar(&asTOML, "toml", false, "print TOML that profile set -f accepts")
	return cmd
}

func (a *app) profileSetCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set -f FILE",
		Short: "Apply the fields set in a TOML file; absent fields are left alone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := readProfile(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(ctx context.Context, b *bot.Bot) error {
				return b.SetProfile(ctx, profile)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `profile TOML file, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readProfile decodes a Profile and rejects keys it does not know, so a typo
// does not silently skip a field.
func readProfile(path string, stdin io.Reader) (types.Profile, error) {
	var (
		profile types.Profile
		meta    toml.MetaData
		err     error
	)
	if path == "-" {
		meta, err = toml.NewDecoder(stdin).Decode(&profile)
	} else {
		meta, err = toml.DecodeFile(path, &profile)
	}
	if err != nil {
		return types.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return types.Profile{}, fmt.Errorf("read profile: unknown keys %v", undecoded)
	}
	return profile, nil
}

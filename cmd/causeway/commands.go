package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/causeway/internal/auth"
	"github.com/narvanalabs/causeway/internal/models"
	"github.com/narvanalabs/causeway/internal/secrets"
	"github.com/narvanalabs/causeway/pkg/config"
)

// withApp runs fn against a connected app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, log, err := loadConfig(false)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newImportMilestoneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import-milestone <milestone-id>",
		Short: "Import every successful build of a PNC milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			milestoneID, err := strconv.Atoi(args[0])
			if err != nil || milestoneID <= 0 {
				return fmt.Errorf("invalid milestone id %q", args[0])
			}

			return withApp(cmd, func(a *app) error {
				job, err := a.importer.RunMilestone(cmd.Context(), milestoneID)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), job); err != nil {
					return err
				}
				if job.Status != models.ImportJobStatusDone {
					return fmt.Errorf("import finished with status %s", job.Status)
				}
				return nil
			})
		},
	}
}

func newUntagCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "untag <tag> <name> <version> <release>",
		Short: "Remove a build from the candidate tag of a tag",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			nvr := models.NewNVR(args[1], args[2], args[3])
			return withApp(cmd, func(a *app) error {
				if err := a.importer.Untag(cmd.Context(), args[0], nvr); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "untagged %s from %s\n", nvr, args[0])
				return nil
			})
		},
	}
}

func newSourcesCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sources <build-id>",
		Short: "Download the sources archive of a PNC build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				rc, err := a.pnc.SourcesArchive(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				defer rc.Close()

				if output != "" {
					if err := writeArchive(output, rc); err != nil {
						return fmt.Errorf("writing sources of build %s: %w", args[0], err)
					}
					return nil
				}
				if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
					return fmt.Errorf("writing sources of build %s: %w", args[0], err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the archive to a file instead of stdout")
	return cmd
}

// writeArchive copies r into a new file at path. The file is closed before
// returning so a failed flush is reported.
func writeArchive(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func newTokenCommand() *cobra.Command {
	var (
		role   string
		expiry time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithDefaults()
			if err != nil {
				return err
			}
			if len(cfg.JWTSecret) < 32 {
				return fmt.Errorf("JWT_SECRET must be at least 32 characters")
			}
			if expiry == 0 {
				expiry = cfg.JWTExpiry
			}

			svc := auth.NewService(&auth.Config{
				JWTSecret:   []byte(cfg.JWTSecret),
				TokenExpiry: expiry,
			}, nil)
			token, err := svc.GenerateToken(args[0], auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "token role (operator or viewer)")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default JWT_EXPIRY)")
	return cmd
}

func newSecretCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage age encrypted configuration values",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "keygen",
		Short: "Generate an age key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, identity, err := secrets.GenerateKeyPair()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# recipient: %s\n%s\n", recipient, identity)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <recipient>",
		Short: "Encrypt stdin for a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			armored, err := secrets.Encrypt(args[0], []byte(strings.TrimRight(string(plaintext), "\n")))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), armored)
			return nil
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/perforate-org/arche/internal/config"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/sqlite"
	"github.com/perforate-org/arche/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Work with the stored index snapshot",
}

var snapshotInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print what the stored snapshot holds without loading it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, closeLog, err := commandSetup()
		if err != nil {
			return err
		}
		defer closeLog()

		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		snap, size, err := b.app.Manager.LoadSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		printSnapshot(cmd.OutOrStdout(), snap, size)
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate every index from the primary tables and store a fresh snapshot",
	Long: `Ignores any stored snapshot, scans the primary tables of every entity
kind and writes the result as the new snapshot. Run it after an INCONSISTENT
error or when the snapshot format is known to be stale. The server must not
be running against the same backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, closeLog, err := commandSetup()
		if err != nil {
			return err
		}
		defer closeLog()

		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		start := time.Now()
		if err := b.app.Manager.Rebuild(cmd.Context()); err != nil {
			return err
		}
		terminate(b)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rebuilt in %s\n", time.Since(start).Round(time.Millisecond))
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(b.app.State.Stats())
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for the HTTP transport",
}

var keyDescription string

var keysCreateCmd = &cobra.Command{
	Use:   "create <user>",
	Short: "Issue a bearer token for a registered user (external id or p_<key>)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(cmd.Context(), func(env keysEnv) error {
			owner, err := env.backend.app.Users.Resolve(args[0])
			if err != nil {
				return err
			}
			token, err := newToken()
			if err != nil {
				return err
			}
			if err := env.keys.Create(cmd.Context(), token, owner, keyDescription); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		})
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list <user>",
	Short: "List the keys of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(cmd.Context(), func(env keysEnv) error {
			owner, err := env.backend.app.Users.Resolve(args[0])
			if err != nil {
				return err
			}
			list, err := env.keys.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tCREATED\tLAST USED\tDESCRIPTION")
			for _, k := range list {
				lastUsed := "never"
				if k.LastUsed != nil {
					lastUsed = humanize.Time(*k.LastUsed)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.Hash[:12], humanize.Time(k.CreatedAt), lastUsed, k.Description)
			}
			return w.Flush()
		})
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Revoke a bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeys(cmd.Context(), func(env keysEnv) error {
			return env.keys.Revoke(cmd.Context(), args[0])
		})
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotInspectCmd)

	keysCreateCmd.Flags().StringVarP(&keyDescription, "description", "d", "", "Note stored with the key")
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRevokeCmd)
}

// commandSetup loads the config for one-shot commands. Their logs always go
// to stderr so stdout carries only the result.
func commandSetup() (config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Transport.Mode = config.TransportStdio
	logger, closeLog := newLogger(cfg)
	return cfg, logger, closeLog, nil
}

type keysEnv struct {
	backend *backend
	keys    *sqlite.APIKeyRepository
}

// withKeys loads the indices, so user references resolve, and opens the key table.
func withKeys(ctx context.Context, fn func(keysEnv) error) error {
	cfg, logger, closeLog, err := commandSetup()
	if err != nil {
		return err
	}
	defer closeLog()

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	if _, err := b.app.Manager.Resume(ctx); err != nil {
		return fmt.Errorf("failed to load indices: %w", err)
	}
	defer terminate(b)

	keys, closeKeys, err := openKeys(cfg, b)
	if err != nil {
		return err
	}
	defer closeKeys()
	return fn(keysEnv{backend: b, keys: keys})
}

// terminate stores the snapshot on a context that outlives the command's.
func terminate(b *backend) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.app.Manager.Terminate(ctx)
}

// newToken returns 32 random bytes, hex encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func printSnapshot(out io.Writer, snap *store.Snapshot, size int) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "size\t%s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "users\t%s\n", humanize.Comma(int64(len(snap.Users.Existence))))
	fmt.Fprintf(w, "principals\t%s\n", humanize.Comma(int64(len(snap.Users.Principals))))
	fmt.Fprintf(w, "names\t%s\n", humanize.Comma(int64(len(snap.Users.Names))))

	kinds := make([]string, 0, len(snap.Kinds))
	for name := range snap.Kinds {
		kinds = append(kinds, name)
	}
	sort.Strings(kinds)
	for _, name := range kinds {
		k := snap.Kinds[name]
		fmt.Fprintf(w, "%s\ttitles=%s\tlead_authors=%s\tcounter=%s\n",
			name,
			humanize.Comma(int64(len(k.Titles))),
			humanize.Comma(int64(len(k.LeadAuthors))),
			counterString(k.Counter))
	}
	_ = w.Flush()
}

func counterString(c entityid.CounterState) string {
	if c.CountInMonth == 0 {
		return "unused"
	}
	months := int(c.LastGeneratedMonths)
	return fmt.Sprintf("%04d-%02d/%d", entityid.EpochYear+months/12, months%12+1, c.CountInMonth)
}

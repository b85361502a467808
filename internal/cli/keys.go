package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/ordersync-backend/pkg/auth"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/angelmondragon/ordersync-backend/pkg/security"
)

// AdminKeyResult is printed by hash-admin-key.
type AdminKeyResult struct {
	Key  string `json:"key,omitempty"`
	Hash string `json:"hash"`
}

type hashKeyOptions struct {
	key      string
	generate int
}

// NewHashAdminKeyCommand creates the hash-admin-key command.
func NewHashAdminKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &hashKeyOptions{}

	cmd := &cobra.Command{
		Use:   "hash-admin-key",
		Short: "Hash an admin reload key for ORDERSYNC_ADMIN_KEY_HASH",
		Long: `Hash an admin key with the Argon2id parameters from the environment. With
--generate a random key of the given length is created and printed alongside
its hash.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var admin config.AdminConfig
			if err := envconfig.Process(config.EnvPrefix, &admin); err != nil {
				return fmt.Errorf("admin config: %w", err)
			}
			result, err := runHashAdminKey(opts, admin)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts, result, func(w io.Writer) {
				if result.Key != "" {
					fmt.Fprintf(w, "key:  %s\n", result.Key)
				}
				fmt.Fprintf(w, "hash: %s\n", result.Hash)
			})
		},
	}

	cmd.Flags().StringVar(&opts.key, "key", "", "key to hash")
	cmd.Flags().IntVar(&opts.generate, "generate", 0, "generate a random key of this length")

	return cmd
}

func runHashAdminKey(opts *hashKeyOptions, admin config.AdminConfig) (AdminKeyResult, error) {
	key := opts.key
	var result AdminKeyResult
	switch {
	case opts.generate > 0 && key != "":
		return result, fmt.Errorf("--key and --generate are mutually exclusive")
	case opts.generate > 0:
		generated, err := security.GenerateAdminKey(opts.generate)
		if err != nil {
			return result, err
		}
		key = generated
		result.Key = generated
	case strings.TrimSpace(key) == "":
		return result, fmt.Errorf("either --key or --generate is required")
	}

	hash, err := security.HashAdminKey(key, admin)
	if err != nil {
		return result, err
	}
	result.Hash = hash
	return result, nil
}

// TokenResult is printed by mint-token.
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type mintOptions struct {
	username   string
	role       string
	department string
}

// NewMintTokenCommand creates the mint-token command.
func NewMintTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &mintOptions{}

	cmd := &cobra.Command{
		Use:   "mint-token",
		Short: "Mint an operator token for local development",
		Long: `Mint an operator JWT signed with ORDERSYNC_JWT_SECRET. Production tokens come
from the login service; this is for development and smoke tests.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var jwtCfg config.JWTConfig
			if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
				return fmt.Errorf("jwt config: %w", err)
			}
			result, err := runMintToken(opts, jwtCfg, time.Now())
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts, result, func(w io.Writer) {
				fmt.Fprintln(w, result.Token)
			})
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "operator username")
	cmd.Flags().StringVar(&opts.role, "role", string(enums.OperatorRolePicker), "operator role")
	cmd.Flags().StringVar(&opts.department, "department", "", "department code (pickers only)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runMintToken(opts *mintOptions, cfg config.JWTConfig, now time.Time) (TokenResult, error) {
	role, err := enums.ParseOperatorRole(opts.role)
	if err != nil {
		return TokenResult{}, err
	}
	payload := auth.OperatorTokenPayload{Username: strings.TrimSpace(opts.username), Role: role}
	if opts.department != "" {
		dept, err := enums.ParseDepartment(opts.department)
		if err != nil {
			return TokenResult{}, err
		}
		payload.Department = &dept
	}
	token, err := auth.MintAccessToken(cfg, now, payload)
	if errors.Is(err, auth.ErrPickerDepartment) {
		return TokenResult{}, fmt.Errorf("%w: pass --department", err)
	}
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{
		Token:     token,
		ExpiresAt: now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute).UTC(),
	}, nil
}

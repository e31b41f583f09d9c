package main

import (
	"fmt"

	"marketplace_chat/pkg/token"

	"github.com/spf13/cobra"
)

var (
	tokenMember string
	tokenRole   string
	tokenIssuer string
)

// tokenCmd signs a JWT with JWT_SECRET, for local relays only
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenMember, "member", "", "member id written to user_id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(token.RoleBuyer), "buyer, seller or rider")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "chat_client", "token issuer")
	_ = tokenCmd.MarkFlagRequired("member")
}

func runToken(cmd *cobra.Command, _ []string) error {
	role := token.RoleType(tokenRole)
	switch role {
	case token.RoleBuyer, token.RoleSeller, token.RoleRider:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	t, err := token.GenerateJWT(tokenMember, role, tokenIssuer)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t)
	return nil
}

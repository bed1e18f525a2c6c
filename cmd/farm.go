package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/mezonai/lpfarm/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ClientFlags struct {
	Endpoint string
	Caller   string
	KeyFile  string
	Timeout  time.Duration
}

var clientFlags ClientFlags

var (
	massUpdate bool
	poolWeight uint64
)

// farmClient builds an API client acting as --caller, or as the address
// derived from the seed in --key-file.
func farmClient() (*client.FarmClient, error) {
	caller := clientFlags.Caller
	if caller == "" && clientFlags.KeyFile != "" {
		raw, err := os.ReadFile(clientFlags.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		if caller, err = client.AddressFromSeed(strings.TrimSpace(string(raw))); err != nil {
			return nil, fmt.Errorf("load key file: %w", err)
		}
	}
	return client.NewClient(client.Config{
		Endpoint: clientFlags.Endpoint,
		Caller:   caller,
		Timeout:  clientFlags.Timeout,
	})
}

// withClient adapts a client call into a cobra RunE that prints the result as JSON
func withClient(call func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := farmClient()
		if err != nil {
			return err
		}
		out, err := call(cmd.Context(), c, args)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
}

// userArg returns the explicit user argument or the caller
func userArg(c *client.FarmClient, args []string, idx int) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	if c.Caller() == "" {
		return "", fmt.Errorf("user address required (argument, --caller or --key-file)")
	}
	return c.Caller(), nil
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage and inspect staking pools",
}

var poolAddCmd = &cobra.Command{
	Use:   "add <stake_asset>",
	Short: "Add a pool (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		return c.AddPool(ctx, poolWeight, args[0], massUpdate)
	}),
}

var poolSetCmd = &cobra.Command{
	Use:   "set <pool_id>",
	Short: "Change a pool weight (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, err := client.ParsePoolID(args[0])
		if err != nil {
			return nil, err
		}
		return c.SetPool(ctx, id, poolWeight, massUpdate)
	}),
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all pools",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		return c.GetPools(ctx)
	}),
}

var poolShowCmd = &cobra.Command{
	Use:   "show <pool_id>",
	Short: "Show one pool",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, err := client.ParsePoolID(args[0])
		if err != nil {
			return nil, err
		}
		return c.GetPool(ctx, id)
	}),
}

var rateCmd = &cobra.Command{
	Use:   "rate <reward_per_step>",
	Short: "Change the global reward rate (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		rate, err := client.ParseAmount(args[0])
		if err != nil {
			return nil, err
		}
		return c.SetRewardRate(ctx, rate, massUpdate)
	}),
}

var fundCmd = &cobra.Command{
	Use:   "fund <amount>",
	Short: "Move reward asset from the caller into the vault",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		amount, err := client.ParseAmount(args[0])
		if err != nil {
			return nil, err
		}
		return c.Fund(ctx, amount)
	}),
}

var depositCmd = &cobra.Command{
	Use:   "deposit <pool_id> <amount>",
	Short: "Stake into a pool, paying out pending reward",
	Args:  cobra.ExactArgs(2),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, amount, err := poolAndAmount(args)
		if err != nil {
			return nil, err
		}
		return c.Deposit(ctx, id, amount)
	}),
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <pool_id> <amount>",
	Short: "Unstake from a pool, paying out pending reward",
	Args:  cobra.ExactArgs(2),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, amount, err := poolAndAmount(args)
		if err != nil {
			return nil, err
		}
		return c.Withdraw(ctx, id, amount)
	}),
}

var harvestCmd = &cobra.Command{
	Use:   "harvest <pool_id>",
	Short: "Claim pending reward from a pool",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, err := client.ParsePoolID(args[0])
		if err != nil {
			return nil, err
		}
		return c.Harvest(ctx, id)
	}),
}

var emergencyWithdrawCmd = &cobra.Command{
	Use:   "emergency-withdraw <pool_id>",
	Short: "Withdraw the whole stake and forfeit pending reward",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, err := client.ParsePoolID(args[0])
		if err != nil {
			return nil, err
		}
		return c.EmergencyWithdraw(ctx, id)
	}),
}

var pendingCmd = &cobra.Command{
	Use:   "pending <pool_id> [user]",
	Short: "Show reward pending for a user",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, err := client.ParsePoolID(args[0])
		if err != nil {
			return nil, err
		}
		user, err := userArg(c, args, 1)
		if err != nil {
			return nil, err
		}
		return c.PendingReward(ctx, id, user)
	}),
}

var positionCmd = &cobra.Command{
	Use:   "position <pool_id> [user]",
	Short: "Show a user's stake in a pool",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		id, err := client.ParsePoolID(args[0])
		if err != nil {
			return nil, err
		}
		user, err := userArg(c, args, 1)
		if err != nil {
			return nil, err
		}
		return c.GetPosition(ctx, id, user)
	}),
}

var balanceCmd = &cobra.Command{
	Use:   "balance <asset> [address]",
	Short: "Show an asset balance",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		addr, err := userArg(c, args, 1)
		if err != nil {
			return nil, err
		}
		return c.GetBalance(ctx, args[0], addr)
	}),
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Show the reward vault",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		return c.GetVault(ctx)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current step and pool summary",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		return c.GetStatus(ctx)
	}),
}

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Control a manually clocked farm",
}

var clockAdvanceCmd = &cobra.Command{
	Use:   "advance [steps]",
	Short: "Advance the manual clock (owner only)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, c *client.FarmClient, args []string) (interface{}, error) {
		steps := uint64(1)
		if len(args) == 1 {
			var err error
			if steps, err = strconv.ParseUint(args[0], 10, 64); err != nil {
				return nil, fmt.Errorf("invalid steps %q: %w", args[0], err)
			}
		}
		return c.AdvanceClock(ctx, steps)
	}),
}

func poolAndAmount(args []string) (uint64, *uint256.Int, error) {
	id, err := client.ParsePoolID(args[0])
	if err != nil {
		return 0, nil, err
	}
	amount, err := client.ParseAmount(strings.ReplaceAll(args[1], "_", ""))
	if err != nil {
		return 0, nil, err
	}
	return id, amount, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&clientFlags.Endpoint, "api", "u", "http://localhost:8080", "farm API URL")
	rootCmd.PersistentFlags().StringVarP(&clientFlags.Caller, "caller", "c", "", "address to act as")
	rootCmd.PersistentFlags().StringVarP(&clientFlags.KeyFile, "key-file", "k", "", "seed file whose address to act as")
	rootCmd.PersistentFlags().DurationVar(&clientFlags.Timeout, "timeout", 10*time.Second, "API request timeout")

	poolAddCmd.Flags().Uint64VarP(&poolWeight, "weight", "w", 1, "pool weight")
	poolSetCmd.Flags().Uint64VarP(&poolWeight, "weight", "w", 1, "new pool weight")
	for _, c := range []*cobra.Command{poolAddCmd, poolSetCmd, rateCmd} {
		c.Flags().BoolVar(&massUpdate, "mass-update", true, "settle every pool before the change")
	}

	poolCmd.AddCommand(poolAddCmd, poolSetCmd, poolListCmd, poolShowCmd)
	clockCmd.AddCommand(clockAdvanceCmd)
	rootCmd.AddCommand(poolCmd, rateCmd, fundCmd, depositCmd, withdrawCmd, harvestCmd,
		emergencyWithdrawCmd, pendingCmd, positionCmd, balanceCmd, vaultCmd, statusCmd, clockCmd)
}

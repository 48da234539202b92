package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/paymentsheet-go/microdeposit"
)

func newVerifyMicrodepositsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-microdeposits",
		Short: "Verify a bank account with microdeposit amounts or a descriptor code",
		Example: `  paymentsheet verify-microdeposits --client-secret pi_123_secret_abc --amounts 32,45
  paymentsheet verify-microdeposits --client-secret seti_123_secret_abc --descriptor-code SM11AA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("client-secret", "", "client secret of the intent awaiting verification")
	flags.String("amounts", "", "the two deposited amounts in cents, comma separated")
	flags.String("descriptor-code", "", "the statement descriptor code of the deposit")
	return cmd
}

func (a *app) runVerify(cmd *cobra.Command) error {
	v := a.v
	secret := v.GetString("client-secret")
	if secret == "" {
		return fmt.Errorf("--client-secret is required")
	}
	amounts, code := v.GetString("amounts"), v.GetString("descriptor-code")
	if (amounts == "") == (code == "") {
		return fmt.Errorf("exactly one of --amounts or --descriptor-code is required")
	}

	client, err := a.paymentsClient()
	if err != nil {
		return err
	}
	manager, err := microdeposit.NewManager(client, microdeposit.DefaultConfig, microdeposit.WithLogger(a.logger))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	intent, err := client.RetrieveIntent(ctx, secret)
	if err != nil {
		return fmt.Errorf("failed to retrieve intent: %w", err)
	}
	session, err := manager.Start(intent)
	if err != nil {
		return err
	}

	if amounts != "" {
		parsed, perr := parseAmounts(amounts)
		if perr != nil {
			return perr
		}
		session, err = manager.VerifyAmounts(ctx, session.ID, parsed)
	} else {
		session, err = manager.VerifyDescriptorCode(ctx, session.ID, strings.ToUpper(code))
	}
	if err != nil {
		a.reporter.CaptureError(err, map[string]string{"command": "verify-microdeposits", "intent": intent.ID})
		return err
	}
	return writeJSON(cmd.OutOrStdout(), session)
}

// parseAmounts parses "32,45" into cents.
func parseAmounts(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	amounts := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a whole number of cents", microdeposit.ErrInvalidAmounts, p)
		}
		amounts = append(amounts, n)
	}
	if err := microdeposit.ValidateAmounts(amounts); err != nil {
		return nil, err
	}
	return amounts, nil
}

// Package admin implements the operator text commands for inspecting and
// resetting poller and reconciler state.
package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stacklok/boostsync/internal/reconcile"
	"github.com/stacklok/boostsync/internal/vanity"
)

// DefaultPrefix marks a direct message as a command
const DefaultPrefix = "!"

// ErrInvalidUser is returned when a user argument is neither an id nor a mention
var ErrInvalidUser = errors.New("invalid user: expected an id or a mention")

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)
var idPattern = regexp.MustCompile(`^\d+$`)

// VanityController is the subset of the poller the commands need
type VanityController interface {
	Reset(code string) error
	ResetAll() int
	Trackers() []vanity.Tracker
}

// MemberReconciler is the subset of the reconciler the commands need
type MemberReconciler interface {
	Resync(ctx context.Context, userID string) (*reconcile.Result, error)
	Inspect(ctx context.Context, userID string) (*reconcile.Report, error)
}

// Processor parses operator messages and runs them against the controllers
type Processor struct {
	operatorID string
	prefix     string
	vanity     VanityController
	reconciler MemberReconciler
}

// NewProcessor creates a Processor. Messages from anyone but operatorID are ignored.
func NewProcessor(operatorID, prefix string, poller VanityController, reconciler MemberReconciler) *Processor {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Processor{
		operatorID: operatorID,
		prefix:     prefix,
		vanity:     poller,
		reconciler: reconciler,
	}
}

// Handle runs one message. It returns the reply and whether the message was
// accepted as a command at all.
func (p *Processor) Handle(ctx context.Context, authorID, content string) (string, bool) {
	if p.operatorID == "" || authorID != p.operatorID {
		slog.Debug("Ignoring message from non-operator", "author_id", authorID)
		return "", false
	}

	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, p.prefix) {
		return "", false
	}

	args := strings.Fields(strings.TrimPrefix(content, p.prefix))
	if len(args) == 0 {
		return "", false
	}
	args[0] = strings.ToLower(args[0])

	slog.Info("Running admin command", "command", args[0], "args", args[1:])

	var out bytes.Buffer
	root := p.newCommandTree(&out)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Warn("Admin command failed", "command", args[0], "error", err)
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		fmt.Fprintf(&out, "Error: %v", err)
	}

	return strings.TrimSpace(out.String()), true
}

// newCommandTree builds a fresh tree per message since cobra commands carry
// parse state
func (p *Processor) newCommandTree(out *bytes.Buffer) *cobra.Command {
	root := &cobra.Command{
		Use:           p.prefix,
		Short:         "Operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(
		&cobra.Command{
			Use:   "resetvanity <code|all>",
			Short: "Re-arm a vanity tracker so it is probed and can notify again",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.resetVanity(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "checkboost <user>",
			Short: "Show a member's boost and access state",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.checkBoost(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "forceupdate <user>",
			Short: "Reconcile a member's roles from their live boost state",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.forceUpdate(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "vanitystatus",
			Short: "List vanity trackers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p.vanityStatus(cmd)
				return nil
			},
		},
	)

	return root
}

func (p *Processor) resetVanity(cmd *cobra.Command, code string) error {
	if strings.EqualFold(code, "all") {
		n := p.vanity.ResetAll()
		cmd.Printf("Reset %d vanity tracker(s).\n", n)
		return nil
	}

	if err := p.vanity.Reset(code); err != nil {
		if errors.Is(err, vanity.ErrUnknownCode) {
			return fmt.Errorf("unknown vanity code %q", code)
		}
		return err
	}
	cmd.Printf("Reset vanity tracker for %s.\n", code)
	return nil
}

func (p *Processor) checkBoost(cmd *cobra.Command, arg string) error {
	userID, err := ParseUserID(arg)
	if err != nil {
		return err
	}

	report, err := p.reconciler.Inspect(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to inspect <@%s>: %w", userID, err)
	}

	cmd.Printf("Boost status for <@%s>\n", userID)
	if !report.InSource {
		cmd.Println("Source: not a member")
	} else {
		since := "none"
		if report.SubscribedSince != nil {
			since = vanity.FormatTimestamp(*report.SubscribedSince)
		}
		cmd.Printf("Source: boosting=%s booster_role=%s custom_role=%s since=%s\n",
			yesNo(report.Boosting), yesNo(report.HasBoosterRole), yesNo(report.HasCustomRole), since)
	}
	if !report.InTarget {
		cmd.Println("Target: not a member")
	} else {
		cmd.Printf("Target: access=%s (access_role=%s denied_role=%s)\n",
			report.Access, yesNo(report.HasAccessRole), yesNo(report.HasDeniedRole))
	}
	return nil
}

func (p *Processor) forceUpdate(cmd *cobra.Command, arg string) error {
	userID, err := ParseUserID(arg)
	if err != nil {
		return err
	}

	result, err := p.reconciler.Resync(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("force update for <@%s> failed: %w", userID, err)
	}

	cmd.Printf("Force update for <@%s>: boosting=%s, %d added, %d removed",
		userID, yesNo(result.Boosting), len(result.Added), len(result.Removed))
	if !result.TargetPresent {
		cmd.Print(" (not in target guild)")
	}
	cmd.Println()
	return nil
}

func (p *Processor) vanityStatus(cmd *cobra.Command) {
	trackers := p.vanity.Trackers()
	if len(trackers) == 0 {
		cmd.Println("No vanity codes are tracked.")
		return
	}

	for _, t := range trackers {
		line := fmt.Sprintf("%s: %s, misses=%d", t.Code, t.State(), t.ConsecutiveMisses)
		if t.LastObservation != "" {
			line += fmt.Sprintf(", last=%s", t.LastObservation)
		}
		if t.NotifiedAt != nil {
			line += ", notified " + vanity.FormatTimestamp(*t.NotifiedAt)
		}
		cmd.Println(line)
	}
}

// ParseUserID accepts a raw numeric id or a <@id> / <@!id> mention
func ParseUserID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if m := mentionPattern.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	if idPattern.MatchString(arg) {
		return arg, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidUser, arg)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

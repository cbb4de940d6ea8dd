package configutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("bot-token", "flag-default", "")
	cmd.Flags().Duration("poll-timeout", 30*time.Second, "")
	cmd.Flags().StringArray("allowed-chat-id", nil, "")
	return cmd
}

func TestFlagOrViperPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newTestCmd()
	if got := FlagOrViperString(cmd, "bot-token", "telegram.bot_token"); got != "flag-default" {
		t.Fatalf("FlagOrViperString() = %q, want flag default", got)
	}

	viper.Set("telegram.bot_token", "from-viper")
	if got := FlagOrViperString(cmd, "bot-token", "telegram.bot_token"); got != "from-viper" {
		t.Fatalf("FlagOrViperString() = %q, want viper value", got)
	}

	if err := cmd.Flags().Set("bot-token", "from-flag"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := FlagOrViperString(cmd, "bot-token", "telegram.bot_token"); got != "from-flag" {
		t.Fatalf("FlagOrViperString() = %q, want changed flag", got)
	}
}

func TestFlagOrViperWithoutFlag(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("telegram.poll_timeout", "5s")
	viper.Set("telegram.allowed_chat_ids", []string{"1", "2"})
	cmd := &cobra.Command{Use: "bare"}

	if got := FlagOrViperDuration(cmd, "poll-timeout", "telegram.poll_timeout"); got != 5*time.Second {
		t.Fatalf("FlagOrViperDuration() = %v, want 5s", got)
	}
	if got := FlagOrViperStringArray(nil, "", "telegram.allowed_chat_ids"); len(got) != 2 {
		t.Fatalf("FlagOrViperStringArray() = %v, want 2 entries", got)
	}
	if got := FlagOrViperInt(cmd, "missing", "missing.key"); got != 0 {
		t.Fatalf("FlagOrViperInt() = %d, want 0", got)
	}
}

package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	// Bot API
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.task_timeout", 60*time.Second)
	viper.SetDefault("telegram.max_concurrency", 8)
	viper.SetDefault("telegram.allowed_chat_ids", []string{})

	// User-account session
	viper.SetDefault("userclient.app_id", 0)
	viper.SetDefault("userclient.app_hash", "")
	viper.SetDefault("userclient.phone", "")
	viper.SetDefault("userclient.session_file", "daaninfobot.session")
	viper.SetDefault("userclient.resolve_rate", 1.0)
	viper.SetDefault("userclient.resolve_burst", 3)
	viper.SetDefault("userclient.resolve_timeout", 15*time.Second)
	viper.SetDefault("userclient.log_level", "warn")

	viper.SetDefault("bot.roll_animation", "./rickroll-roll.gif")
}

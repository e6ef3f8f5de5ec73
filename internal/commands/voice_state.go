package commands

import (
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/zap"
)

var errNotInVoice = errors.New("user is not currently in a voice channel")

// userVoiceChannel finds the voice channel the user sits in. The cached voice
// state is tried first, then the guild's full voice state list.
func userVoiceChannel(logger *zap.Logger, st *state.State, guildID discord.GuildID, userID discord.UserID) (discord.ChannelID, error) {
	voiceState, err := st.VoiceState(guildID, userID)
	if err == nil && voiceState != nil && voiceState.ChannelID.IsValid() {
		return voiceState.ChannelID, nil
	}
	if err != nil {
		logger.Debug("Failed to get voice state",
			zap.Error(err),
			zap.Stringer("user_id", userID),
			zap.Stringer("guild_id", guildID))
	}

	voiceStates, err := st.VoiceStates(guildID)
	if err != nil {
		logger.Debug("Failed to get guild voice states",
			zap.Error(err),
			zap.Stringer("guild_id", guildID))

		return 0, errors.New("unable to query voice states - ensure bot has GUILD_VOICE_STATES intent and permissions")
	}

	for _, vs := range voiceStates {
		if vs.UserID == userID && vs.ChannelID.IsValid() {
			return vs.ChannelID, nil
		}
	}

	return 0, errNotInVoice
}

package api

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// defaultAvatars is the number of stock avatars on the CDN
const defaultAvatars = 5

// AvatarURL returns the CDN avatar of a user, or one of the stock avatars
// picked by user id when none is set
func AvatarURL(userID, avatar string) string {
	if avatar != "" {
		return discordgo.EndpointCDNAvatars + userID + "/" + avatar + ".png"
	}

	id, err := strconv.ParseUint(userID, 10, 64)
	if err != nil {
		id = 0
	}
	return discordgo.EndpointCDN + "embed/avatars/" + strconv.FormatUint(id%defaultAvatars, 10) + ".png"
}

// GuildIconURL returns the CDN icon of a guild, or "" when it has none
func GuildIconURL(guildID, icon string) string {
	if icon == "" {
		return ""
	}
	return discordgo.EndpointCDNIcons + guildID + "/" + icon + ".png"
}

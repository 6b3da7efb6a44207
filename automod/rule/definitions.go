package rule

// Definition is the catalogue entry for a rule name, as shown to channel owners.
type Definition struct {
	FriendlyName string `json:"friendlyName"`
	Description  string `json:"description"`
	// hidden from the rule picker; composites are built by the editor itself
	Hidden     bool `json:"hidden"`
	Invertable bool `json:"invertable"`
}

var Definitions = map[Name]Definition{
	NameAnd: {
		FriendlyName: "And",
		Description:  "Combine multiple rules together",
		Hidden:       true,
	},
	NameOr: {
		FriendlyName: "Or",
		Description:  "Combine multiple rules together",
		Hidden:       true,
	},
	NameContainsText: {
		FriendlyName: "Contains Text",
		Description:  "Check if the text contains a specific string",
		Invertable:   true,
	},
	NameTextMatchesPattern: {
		FriendlyName: "Text Matches Pattern (Regex)",
		Description:  "Check if the text matches a specific pattern",
		Invertable:   true,
	},
	NameContainsTooManyMentions: {
		FriendlyName: "Contains Mentions",
		Description:  "Check if the text contains a certain amount of mentions",
		Invertable:   true,
	},
	NameContainsLinks: {
		FriendlyName: "Contains Links",
		Description:  "Check if the text contains any links",
		Invertable:   true,
	},
	NameUserProfileContainsText: {
		FriendlyName: "User Profile Contains Text",
		Description:  "Check if the user's profile contains a specific string",
		Invertable:   true,
	},
	NameUserDisplayNameContainsText: {
		FriendlyName: "User Display Name Contains Text",
		Description:  "Check if the user's display name contains a specific string",
		Invertable:   true,
	},
	NameUserFollowerCount: {
		FriendlyName: "User Follower Count",
		Description:  "Check if the user's follower count is within a range",
	},
	NameUserIsNotActive: {
		FriendlyName: "User Is Not Active",
		Description:  "Require the user is active",
		Invertable:   true,
	},
	NameUserFidInRange: {
		FriendlyName: "User FID In Range",
		Description:  "Check if the user's FID is within a range",
	},
	NameUserIsCohost: {
		FriendlyName: "User Is Cohost",
		Description:  "Check if the user is a cohost",
		Invertable:   true,
	},
}

type ActionDefinition struct {
	FriendlyName string `json:"friendlyName"`
	Description  string `json:"description"`
	Hidden       bool   `json:"hidden"`
}

var ActionDefinitions = map[ActionType]ActionDefinition{
	ActionMute: {
		FriendlyName: "Mute",
		Description:  "All this user's casts will be silently hidden from the channel until you unmute.",
	},
	ActionHideQuietly: {
		FriendlyName: "Hide Quietly",
		Description:  "Hide the cast without notifying the user",
	},
	ActionBypass: {
		FriendlyName: "Bypass",
		Description:  "Bypass the rule and let the cast be visible",
		Hidden:       true,
	},
	ActionBan: {
		FriendlyName: "Permanent Ban",
		Description:  "Permanently ban them. This cannot be undone at the moment.",
	},
	ActionWarnAndHide: {
		FriendlyName: "Warn and Hide",
		Description:  "Hide the cast and let them know it was hidden via a notification",
	},
	ActionUnmuted: {
		FriendlyName: "Unmuted",
		Description:  "Unmute the user",
		Hidden:       true,
	},
	ActionCooldownEnded: {
		FriendlyName: "End Cooldown",
		Description:  "End the user's cooldown period",
		Hidden:       true,
	},
	ActionUnhide: {
		FriendlyName: "Unhide",
		Description:  "Unhide the cast",
		Hidden:       true,
	},
	ActionCooldown: {
		FriendlyName: "Cooldown",
		Description:  "New casts from this user will be automatically hidden for the duration specified.",
	},
}

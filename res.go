package main

// Reply texts.
const (
	MsgSessionOpened = "New session has started ✅\n\nPlease share your post link 🖇️"
	MsgSessionFailed = "⚠️ Something went wrong while starting the session, but the bot is still running."

	MsgTrackingOn  = "Ad tracking enabled ✅\nPlease drop the ad along with your username (the ID you used to complete the task)."
	MsgTrackingOff = "Ad tracking has been stopped."

	MsgUnauthorized = "Unauthorized access attempt!"

	MsgNoLinksYet        = "No one shared link!"
	MsgLinkCountTemplate = "Total shared links: %d"

	MsgNoAdsYet        = "❌ No users have completed the ad task yet."
	MsgAdCountTemplate = "✅ %d users have completed the ad task so far."

	MsgAllSafe            = "All safe!"
	MsgUnsafeListHeader   = "Unsafe list:\n"
	MsgNoUsers            = "🔴 No users found!"
	MsgChecklistHeader    = "📋 Checklist:\n"
	MsgNoDoubles          = "No multiple links or users with the same X username yet."
	MsgDoubleLinksHeader  = "multiple links:\n"
	MsgSharedHandleHeader = "\nsame X username:\n"

	MsgClearedAll          = "Cleared all!"
	MsgClearedUserTemplate = "All data for %s has been cleared!"

	MsgCompletionTemplate = "𝕏 ID: @%s\n"

	MsgUserNotFoundTemplate = "User %s not found"
	MsgInvalidUsername      = "Invalid username"
	MsgNeedRestrictRights   = "I need 'Manage Members' permissions to mute users."
	MsgMutedTemplate        = "Muted %s (@%s)."
	MsgUnmutedTemplate      = "Unmuted %s (@%s)."
	MsgMarkedTemplate       = "Marked %s as %s."
	MsgNoUnsafeToMute       = "No users in the unsafe list to mute."
	MsgMutedAllHeader       = "✅ muted the following users:\n"
	MsgMutedAllNone         = "❌ No users were muted."
	MsgMutedAllFailedHeader = "\n\nFailed:\n"
	MsgInvalidDuration      = "Invalid duration. Use format like 5m (minutes), 2h (hours), or 1d (days)."

	MsgUsageMute     = "Usage: /muteuser @username"
	MsgUsageUnmute   = "Usage: /unmuteuser @username"
	MsgUsageMuteAll  = "Usage: /muteall duration (e.g., /muteall 5h)"
	MsgUsageOverride = "Usage: %s @username"

	MsgUnknownCommand = "Unknown command."
)

// MsgRules - participation guidelines, answered to /rules.
const MsgRules = `Participation Guidelines // Rules

1. Tweet Sharing Rules
• Remove any text after the "?" in tweet links (e.g. ?lang=en).
• Each participant can share only one tweet link.

2. Telegram Profile Requirements
• Your Telegram username must be visible in settings.
• Your Telegram name must match your X (Twitter) account name.

3. Completion Confirmation
• Reply "done" (or "all done") after you complete the ad task.
• If using a backup or alt account, mention your @username along with "done".

4. Screen Recording Instructions (if asked)
• Ensure your profile is clearly visible in the recording.
• Record the timeline from open to close, scrolling top to bottom.`

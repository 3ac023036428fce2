package adapter

import (
	"fmt"

	"github.com/crashfeed/relay/internal/model"
)

// ImpactDescription renders the standard crash description shared by the
// issue-tracker adapters: a fixed lead line, the crash location, the
// affected-user and occurrence counts with singular/plural wording, and
// a link back to the upstream issue page.
func ImpactDescription(p *model.CrashPayload) string {
	var usersText string
	if p.ImpactedDevicesCount == 1 {
		usersText = "This issue is affecting at least 1 user who has crashed "
	} else {
		usersText = fmt.Sprintf(
			"This issue is affecting at least %d users who have crashed ",
			p.ImpactedDevicesCount,
		)
	}

	var crashesText string
	if p.CrashesCount == 1 {
		crashesText = "at least 1 time."
	} else {
		crashesText = fmt.Sprintf("at least %d times.", p.CrashesCount)
	}

	return fmt.Sprintf(
		"Crashlytics detected a new issue.\n%s in %s\n\n%s%s\n\nMore information: %s\n",
		p.Title, p.Method, usersText, crashesText, p.URL,
	)
}

// ImpactSummary renders the one-line summary used for issue titles and
// chat messages.
func ImpactSummary(p *model.CrashPayload) string {
	return p.Title + " [Crashlytics]"
}

package models

import "strings"

// Notice is a blocking, human-readable policy denial shown to the user
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Contact string `json:"contact,omitempty"`
}

// PermissionDeniedNotice is shown when a read-only user attempts a mutating action
func PermissionDeniedNotice(contact string) Notice {
	n := Notice{
		Title:   "🔒 Action not allowed",
		Message: "You do not have permission to perform this action. Your account is READ-ONLY.",
	}
	if contact != "" {
		n.Contact = "To request administrator permissions, contact " + contact + "."
	}
	return n
}

// LoginRequiredNotice is shown when an action is attempted without a session
func LoginRequiredNotice() Notice {
	return Notice{
		Title:   "⚠️ Sign-in required",
		Message: "You must sign in to perform this action.",
	}
}

// Text formats the notice for a plain alert dialog
func (n Notice) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Title, n.Message, n.Contact} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

package client

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted by ValidatePassword.
const MinPasswordLength = 8

// ValidatePassword checks a new password locally before any request is sent.
func ValidatePassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	if password != confirm {
		return &ValidationError{Field: "confirmPassword", Message: "does not match password"}
	}
	return nil
}

// ValidateAttachmentName accepts PDF file names only.
func ValidateAttachmentName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "file", Message: "a file is required"}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return &ValidationError{Field: "file", Message: "only PDF attachments are accepted"}
	}
	return nil
}

// filenameFrom extracts the filename parameter of a Content-Disposition header.
func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return filepath.Base(params["filename"])
}

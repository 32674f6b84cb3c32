// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
	"unicode"
)

//go:embed common_passwords.txt
var commonPasswordsFS embed.FS

var commonPasswords = loadCommonPasswords()

func loadCommonPasswords() map[string]struct{} {
	passwords := make(map[string]struct{})
	file, err := commonPasswordsFS.Open("common_passwords.txt")
	if err != nil {
		return passwords
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		password := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if password != "" {
			passwords[password] = struct{}{}
		}
	}
	return passwords
}

// Password rule codes, also used as translation message IDs.
const (
	CodeMinLength       = "password_min_length"
	CodeEntirelyNumeric = "password_entirely_numeric"
	CodeCommon          = "password_common"
	CodeTooSimilar      = "password_too_similar"
)

// PasswordValidator checks a password before it is hashed.
type PasswordValidator struct {
	MinLength int
}

// NewPasswordValidator returns a validator requiring at least minLength
// characters. Values below 8 fall back to 12.
func NewPasswordValidator(minLength int) *PasswordValidator {
	if minLength < 8 {
		minLength = 12
	}
	return &PasswordValidator{MinLength: minLength}
}

// PasswordRule is a single failed password rule.
type PasswordRule struct {
	Code    string
	Message string
}

// PasswordError lists every rule a password failed.
type PasswordError struct {
	MinLength int
	Rules     []PasswordRule
}

func (e *PasswordError) Error() string {
	if len(e.Rules) == 0 {
		return "password validation failed"
	}
	return e.Rules[0].Message
}

// Codes returns the codes of all failed rules.
func (e *PasswordError) Codes() []string {
	codes := make([]string, len(e.Rules))
	for i, r := range e.Rules {
		codes[i] = r.Code
	}
	return codes
}

// Validate returns a *PasswordError when the password breaks any rule.
// The email's local part counts as personal information for the similarity check.
func (v *PasswordValidator) Validate(password, email string) error {
	var rules []PasswordRule

	if len([]rune(password)) < v.MinLength {
		rules = append(rules, PasswordRule{
			Code:    CodeMinLength,
			Message: fmt.Sprintf("password must be at least %d characters long", v.MinLength),
		})
	}
	if isEntirelyNumeric(password) {
		rules = append(rules, PasswordRule{Code: CodeEntirelyNumeric, Message: "password cannot be entirely numeric"})
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		rules = append(rules, PasswordRule{Code: CodeCommon, Message: "password is too common"})
	}
	if isSimilarToEmail(password, email) {
		rules = append(rules, PasswordRule{Code: CodeTooSimilar, Message: "password is too similar to the email address"})
	}

	if len(rules) > 0 {
		return &PasswordError{MinLength: v.MinLength, Rules: rules}
	}
	return nil
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return password != ""
}

func isSimilarToEmail(password, email string) bool {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	if len(local) < 3 || password == "" {
		return false
	}
	pw := strings.ToLower(password)
	if strings.Contains(pw, local) || strings.Contains(local, pw) {
		return true
	}
	return similarity(pw, local) > 0.7
}

// similarity is the longest common subsequence relative to the longer input.
func similarity(a, b string) float64 {
	m, n := len(a), len(b)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return float64(prev[n]) / float64(max(m, n))
}

package common

import (
	"fmt"
	"sort"
	"strings"

	"rebate-ledger-go/internal/models"

	"github.com/fatih/color"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	headerColor.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// Success, Warn and Failure print a status line in green, yellow or red.
// Colours are dropped when stdout is not a terminal.
func Success(format string, args ...any) {
	successColor.Printf("✓ "+format+"\n", args...)
}

func Warn(format string, args ...any) {
	warnColor.Printf("! "+format+"\n", args...)
}

func Failure(format string, args ...any) {
	errorColor.Printf("✗ "+format+"\n", args...)
}

// Amount renders a signed amount, red when negative.
func Amount(value string) string {
	if strings.HasPrefix(value, "-") {
		return color.RedString(value)
	}
	return color.GreenString(value)
}

// PrintAdjustmentResult reports a balance-affecting operation under title.
func PrintAdjustmentResult(title string, result *models.AdjustmentResult) {
	heading := strings.ToUpper(title)
	if !result.Success {
		PrintHeader(heading+" FAILED", DefaultWidth)
		Failure("%s", result.Error)
		fields := make([]string, 0, len(result.Fields))
		for field := range result.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Printf("  %-20s %s\n", field+":", result.Fields[field])
		}
		PrintSeparator("=", DefaultWidth)
		return
	}

	PrintHeader(heading, DefaultWidth)
	fmt.Printf("Transaction: %d\n", result.TransactionId)
	fmt.Printf("User:        %d\n", result.UserId)
	fmt.Printf("Amount:      %s\n", result.Amount.StringFixed(2))
	fmt.Printf("New Balance: %s\n", Amount(result.NewBalance.StringFixed(2)))
	PrintSeparator("=", DefaultWidth)
	Success("%s completed", title)
}

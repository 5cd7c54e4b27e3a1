package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

// FormatReport renders a human-readable, ANSI-colored report of one
// evaluation. It consumes the resolutions the evaluator recorded, so the
// rendered pairing always agrees with the score.
func FormatReport(result Result, expected, actual []grocery.GroceryItem) string {
	var b strings.Builder

	b.WriteString(colorBold + "=== Evaluation Report ===" + colorReset + "\n\n")

	b.WriteString(fmt.Sprintf("Overall score: %s%.2f%s\n", scoreColor(result.Score), result.Score, colorReset))
	b.WriteString(fmt.Sprintf("Match score:   %.2f\n", result.MatchScore))
	b.WriteString(fmt.Sprintf("Valid schema:  %s\n\n", boolCell(result.ValidSchema)))

	if !result.ValidSchema {
		b.WriteString(colorRed + "Actual list failed schema validation; no items evaluated." + colorReset + "\n")
		return b.String()
	}

	b.WriteString(colorBold + "Item resolution" + colorReset + "\n")
	b.WriteString(fmt.Sprintf("    %-28s %-28s %s\n", "EXPECTED", "ACTUAL", "VERDICT"))
	for i, res := range result.Resolutions {
		expCell := itemCell(res.Expected)
		actCell := "-"
		if res.Actual != nil {
			actCell = itemCell(*res.Actual)
		}
		b.WriteString(fmt.Sprintf("%2d. %-28s %-28s %s\n", i+1, expCell, actCell, verdictCell(res)))
	}
	for _, name := range result.ExtraItems {
		idx := grocery.FindItem(actual, name)
		cell := name
		if idx >= 0 {
			cell = itemCell(actual[idx])
		}
		b.WriteString(fmt.Sprintf("    %-28s %-28s %sextra%s\n", "-", cell, colorRed, colorReset))
	}
	b.WriteString("\n")

	if len(result.SemanticMatches) > 0 {
		b.WriteString(colorBold + "Semantic matches" + colorReset + "\n")
		for _, name := range result.SortedSemanticMatches() {
			m := result.SemanticMatches[name]
			b.WriteString(fmt.Sprintf("  %s%s ~ %s%s (confidence %.2f): %s\n",
				colorYellow, name, m.ActualName, colorReset, m.Confidence, m.Reasoning))
		}
		b.WriteString("\n")
	}

	b.WriteString(colorBold + "Action accuracy" + colorReset + "\n")
	actions := make([]string, 0, len(result.Actions.Accuracy))
	for action := range result.Actions.Accuracy {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	for _, action := range actions {
		b.WriteString(fmt.Sprintf("  %-8s %6.1f%% (%d/%d)\n",
			action,
			result.Actions.Accuracy[action],
			result.Actions.CorrectCounts[action],
			result.Actions.ExpectedCounts[action]))
	}
	for _, e := range result.Actions.Errors {
		b.WriteString(fmt.Sprintf("  %s%s%s\n", colorRed, e, colorReset))
	}
	b.WriteString("\n")

	b.WriteString(colorBold + "Summary" + colorReset + "\n")
	b.WriteString(nameList("  correct:   ", colorGreen, result.CorrectItems))
	incorrect := make([]string, 0, len(result.IncorrectItems))
	for _, m := range result.IncorrectItems {
		incorrect = append(incorrect, fmt.Sprintf("%s (expected %s, got %s)",
			m.Name, formatQuantity(m.ExpectedQuantity), formatQuantity(m.ActualQuantity)))
	}
	b.WriteString(nameList("  incorrect: ", colorYellow, incorrect))
	b.WriteString(nameList("  missing:   ", colorRed, result.MissingItems))
	b.WriteString(nameList("  extra:     ", colorRed, result.ExtraItems))

	return b.String()
}

func scoreColor(score float64) string {
	switch {
	case score >= 0.9:
		return colorGreen
	case score >= 0.5:
		return colorYellow
	default:
		return colorRed
	}
}

func boolCell(ok bool) string {
	if ok {
		return colorGreen + "yes" + colorReset
	}
	return colorRed + "no" + colorReset
}

func itemCell(item grocery.GroceryItem) string {
	cell := fmt.Sprintf("%s x%s", item.Name, formatQuantity(item.Quantity))
	if item.Measurement != nil {
		cell += fmt.Sprintf(" (%s %s)", formatQuantity(item.Measurement.Value), item.Measurement.Unit)
	}
	if action := normalizedAction(item.Action); action != grocery.ActionAdd {
		cell += " [" + action + "]"
	}
	return cell
}

func verdictCell(res Resolution) string {
	switch {
	case res.Actual == nil:
		return colorRed + "missing" + colorReset
	case res.Kind == MatchSemantic && res.QuantityOK:
		return colorYellow + "semantic match" + colorReset
	case res.QuantityOK:
		return colorGreen + "match" + colorReset
	default:
		return colorYellow + "quantity mismatch" + colorReset
	}
}

func nameList(prefix, color string, names []string) string {
	if len(names) == 0 {
		return prefix + "(none)\n"
	}
	return prefix + color + strings.Join(names, ", ") + colorReset + "\n"
}

func formatQuantity(q float64) string {
	s := fmt.Sprintf("%.2f", q)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

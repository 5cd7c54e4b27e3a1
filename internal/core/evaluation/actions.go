package evaluation

import (
	"fmt"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
)

// ActionResult breaks accuracy down per action type. Accuracy is a
// percentage of expected items of that type whose matched counterpart
// carried the same action.
type ActionResult struct {
	Accuracy       map[string]float64 `json:"accuracy"`
	ExpectedCounts map[string]int     `json:"expectedCounts"`
	CorrectCounts  map[string]int     `json:"correctCounts"`
	Errors         []string           `json:"errors,omitempty"`
}

// evaluateActions reuses the item resolutions from the main pass: the action
// sub-pass never re-matches items, it only inspects the pairs already
// decided. Absent actions default to add on both sides. A pair counts as
// correct when the actions agree and the quantities agree, except for remove
// where quantity is irrelevant. Matched-action pairs with differing
// quantities are neither correct nor reported as action errors; the
// quantity mismatch is already accounted for by the item pass.
func evaluateActions(resolutions []Resolution) ActionResult {
	res := ActionResult{
		Accuracy:       make(map[string]float64),
		ExpectedCounts: make(map[string]int),
		CorrectCounts:  make(map[string]int),
	}

	for _, r := range resolutions {
		expAction := normalizedAction(r.Expected.Action)
		res.ExpectedCounts[expAction]++

		if r.Actual == nil {
			res.Errors = append(res.Errors,
				fmt.Sprintf("missing action for %q: expected %s", r.Expected.Name, expAction))
			continue
		}

		actAction := normalizedAction(r.Actual.Action)
		if actAction != expAction {
			res.Errors = append(res.Errors,
				fmt.Sprintf("wrong action for %q: expected %s, got %s", r.Expected.Name, expAction, actAction))
			continue
		}

		if expAction == grocery.ActionRemove || r.QuantityOK {
			res.CorrectCounts[expAction]++
		}
	}

	for action, expected := range res.ExpectedCounts {
		if expected == 0 {
			res.Accuracy[action] = 100
			continue
		}
		res.Accuracy[action] = float64(res.CorrectCounts[action]) / float64(expected) * 100
	}
	for _, action := range []string{grocery.ActionAdd, grocery.ActionRemove, grocery.ActionModify} {
		if _, ok := res.Accuracy[action]; !ok {
			res.Accuracy[action] = 100
		}
	}

	return res
}

func normalizedAction(action string) string {
	if action == "" {
		return grocery.ActionAdd
	}
	return action
}

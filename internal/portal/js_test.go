package portal

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The portal loads facility availability through the select's change
// handler; setting the value without dispatching the event leaves the
// calendar stale.
func TestSelectFacilityJS_DispatchesChangeEvent(t *testing.T) {
	js := fmt.Sprintf(selectFacilityJS, FacilitySelectSelector, "94")

	assert.Contains(t, js, fmt.Sprintf("%q", FacilitySelectSelector))
	assert.Contains(t, js, `const value = "94"`)
	assert.Contains(t, js, "dispatchEvent(new Event('change', { bubbles: true }))")
	assert.NotContains(t, js, "%!", "all format verbs must be filled")
}

func TestPolicyJS_UsesCheckboxSelector(t *testing.T) {
	snippets := []string{
		fmt.Sprintf(policyCheckedJS, PolicyCheckboxSelector),
		fmt.Sprintf(policyForceCheckJS, PolicyCheckboxSelector),
	}
	for _, js := range snippets {
		assert.Contains(t, js, fmt.Sprintf("%q", PolicyCheckboxSelector))
		assert.NotContains(t, js, "%!", "all format verbs must be filled")
	}
}

func TestForceCheckAndFacilityJS_BubbleChangeEvents(t *testing.T) {
	for name, js := range map[string]string{
		"policy":   fmt.Sprintf(policyForceCheckJS, PolicyCheckboxSelector),
		"facility": fmt.Sprintf(selectFacilityJS, FacilitySelectSelector, "89"),
		"time":     fmt.Sprintf(pickFirstTimeJS, TimeSelectSelector),
	} {
		if !strings.Contains(js, "{ bubbles: true }") {
			t.Errorf("%s snippet does not bubble its change event", name)
		}
	}
}

package model

// StepAction is the kind of a TestStep
type StepAction string

const (
	ActionNavigate          StepAction = "navigate"
	ActionClick             StepAction = "click"
	ActionFill              StepAction = "fill"
	ActionSelect            StepAction = "select"
	ActionWaitForNavigation StepAction = "waitForNavigation"
	ActionWaitForTimeout    StepAction = "waitForTimeout"
	ActionWaitForLoadState  StepAction = "waitForLoadState"
	ActionAssert            StepAction = "assert"
	ActionAPIRequest        StepAction = "apiRequest"
	ActionComment           StepAction = "comment"
)

// AssertType selects what an assert step checks
type AssertType string

const (
	AssertTitle        AssertType = "title"
	AssertURL          AssertType = "url"
	AssertErrorMessage AssertType = "errorMessage"
)

// TestStep is a single executable action. Only the fields relevant to
// Action are set; see the constructors below.
type TestStep struct {
	Action         StepAction `json:"action"`
	URL            string     `json:"url,omitempty"`
	Locator        string     `json:"locator,omitempty"`
	Value          string     `json:"value,omitempty"`
	Timeout        int        `json:"timeout,omitempty"` // ms, waitForTimeout
	State          string     `json:"state,omitempty"`
	AssertType     AssertType `json:"assertType,omitempty"`
	Expected       string     `json:"expected,omitempty"`
	Method         string     `json:"method,omitempty"`
	Data           any        `json:"data,omitempty"`
	ExpectedStatus int        `json:"expectedStatus,omitempty"`
	Text           string     `json:"text,omitempty"`
}

// Healable reports whether the step carries a locator the executor may heal
func (s TestStep) Healable() bool {
	return s.Action == ActionClick || s.Action == ActionFill
}

func Navigate(url string) TestStep {
	return TestStep{Action: ActionNavigate, URL: url}
}

func Click(locator string) TestStep {
	return TestStep{Action: ActionClick, Locator: locator}
}

func Fill(locator, value string) TestStep {
	return TestStep{Action: ActionFill, Locator: locator, Value: value}
}

func Select(locator, value string) TestStep {
	return TestStep{Action: ActionSelect, Locator: locator, Value: value}
}

func WaitForNavigation() TestStep {
	return TestStep{Action: ActionWaitForNavigation}
}

func WaitForTimeout(ms int) TestStep {
	return TestStep{Action: ActionWaitForTimeout, Timeout: ms}
}

func WaitForLoadState(state string) TestStep {
	return TestStep{Action: ActionWaitForLoadState, State: state}
}

func Assert(t AssertType, expected string) TestStep {
	return TestStep{Action: ActionAssert, AssertType: t, Expected: expected}
}

func APIRequest(method, url string, data any, expectedStatus int) TestStep {
	return TestStep{Action: ActionAPIRequest, Method: method, URL: url, Data: data, ExpectedStatus: expectedStatus}
}

func Comment(text string) TestStep {
	return TestStep{Action: ActionComment, Text: text}
}

// TestCase is a named sequence of steps. The executor never modifies it.
type TestCase struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Steps []TestStep `json:"steps"`
}

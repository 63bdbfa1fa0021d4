package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tableside/internal/model"
)

// Scenario defines one end-to-end restaurant flow.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup establishes initial state. Setup is assumed to succeed.
	Setup Setup `yaml:"setup,omitempty"`

	// Flow contains the operations under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup lists the products and tables created before the flow.
type Setup struct {
	Products []SetupProduct `yaml:"products,omitempty"`
	Tables   []int          `yaml:"tables,omitempty"`
}

// SetupProduct is a product created during setup.
type SetupProduct struct {
	// Key is how flow steps and assertions refer to the product.
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	Quantity int    `yaml:"quantity"`
}

// FlowStep is one operation. Which argument fields apply depends on Invoke.
type FlowStep struct {
	Invoke string `yaml:"invoke"`

	Table    int       `yaml:"table,omitempty"`
	Items    []ItemArg `yaml:"items,omitempty"`
	Order    string    `yaml:"order,omitempty"`
	Product  string    `yaml:"product,omitempty"`
	Quantity int       `yaml:"quantity,omitempty"`
	Status   string    `yaml:"status,omitempty"`

	// As binds the placed order's ID to a name later steps can use.
	As string `yaml:"as,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ItemArg is a requested line of a place_order step.
type ItemArg struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "Success" or an error code such as "InsufficientStock".
	Case string `yaml:"case"`

	// Status is the expected order status after a successful step.
	Status string `yaml:"status,omitempty"`

	// Warnings is the expected number of placement warnings.
	Warnings int `yaml:"warnings,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	Action   string   `yaml:"action,omitempty"`
	Actions  []string `yaml:"actions,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Product  string   `yaml:"product,omitempty"`
	Quantity int      `yaml:"quantity,omitempty"`
	Order    string   `yaml:"order,omitempty"`
	Status   string   `yaml:"status,omitempty"`
	Table    int      `yaml:"table,omitempty"`
}

// Flow operations.
const (
	ActionPlaceOrder     = "place_order"
	ActionServeOrder     = "serve_order"
	ActionReceiveOrder   = "receive_order"
	ActionCancelOrder    = "cancel_order"
	ActionPurgeTable     = "purge_table"
	ActionSetQuantity    = "set_quantity"
	ActionSetTableStatus = "set_table_status"
)

// Assertion types.
const (
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertProductQuantity = "product_quantity"
	AssertOrderStatus     = "order_status"
	AssertActiveOrders    = "active_orders"
	AssertOrderCount      = "order_count"
	AssertTableStatus     = "table_status"
)

// CaseSuccess is the completion case of a step that returned no error.
const CaseSuccess = "Success"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	keys := make(map[string]bool, len(s.Setup.Products))
	for i, p := range s.Setup.Products {
		if p.Key == "" {
			return fmt.Errorf("setup.products[%d]: key is required", i)
		}
		if keys[p.Key] {
			return fmt.Errorf("setup.products[%d]: duplicate key %q", i, p.Key)
		}
		keys[p.Key] = true
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step FlowStep) error {
	switch step.Invoke {
	case "":
		return fmt.Errorf("flow[%d]: invoke is required", index)
	case ActionPlaceOrder, ActionPurgeTable:
		if step.Table == 0 {
			return fmt.Errorf("flow[%d]: table is required for %s", index, step.Invoke)
		}
	case ActionServeOrder, ActionReceiveOrder, ActionCancelOrder:
		if step.Order == "" {
			return fmt.Errorf("flow[%d]: order is required for %s", index, step.Invoke)
		}
	case ActionSetQuantity:
		if step.Product == "" {
			return fmt.Errorf("flow[%d]: product is required for %s", index, step.Invoke)
		}
	case ActionSetTableStatus:
		if step.Table == 0 || step.Status == "" {
			return fmt.Errorf("flow[%d]: table and status are required for %s", index, step.Invoke)
		}
	default:
		return fmt.Errorf("flow[%d]: unknown action %q", index, step.Invoke)
	}

	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("flow[%d].expect: case is required", index)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertProductQuantity:
		if a.Product == "" {
			return fmt.Errorf("assertions[%d]: product is required for product_quantity", index)
		}
	case AssertOrderStatus:
		if a.Order == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: order and status are required for order_status", index)
		}
		if _, err := model.ParseOrderStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertActiveOrders, AssertOrderCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTableStatus:
		if a.Table == 0 || a.Status == "" {
			return fmt.Errorf("assertions[%d]: table and status are required for table_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

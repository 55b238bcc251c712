package tools

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/BaSui01/agentlab/llm"
)

type binaryArgs struct {
	A *float64 `json:"a"`
	B *float64 `json:"b"`
}

type powerArgs struct {
	Base     *float64 `json:"base"`
	Exponent *float64 `json:"exponent"`
}

type sqrtArgs struct {
	Number *float64 `json:"number"`
}

var errMissingOperand = errors.New("missing required numeric argument")

func numberResult(v float64) (json.RawMessage, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errors.New("result is not a finite number")
	}
	return json.Marshal(v)
}

func binaryTool(op func(a, b float64) (float64, error)) ToolFunc {
	return func(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args binaryArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.A == nil || args.B == nil {
			return nil, errMissingOperand
		}
		v, err := op(*args.A, *args.B)
		if err != nil {
			return nil, err
		}
		return numberResult(v)
	}
}

func binarySchema(a, b string) json.RawMessage {
	return objectSchema(`"a":{"type":"number","description":"`+a+`"},"b":{"type":"number","description":"`+b+`"}`, "a", "b")
}

// RegisterMathTools 注册六个算术工具
func RegisterMathTools(reg ToolRegistry) error {
	defs := []struct {
		name string
		desc string
		fn   ToolFunc
		sch  json.RawMessage
	}{
		{
			name: "add_numbers",
			desc: "Add two numbers together",
			fn:   binaryTool(func(a, b float64) (float64, error) { return a + b, nil }),
			sch:  binarySchema("First number", "Second number"),
		},
		{
			name: "multiply_numbers",
			desc: "Multiply two numbers together",
			fn:   binaryTool(func(a, b float64) (float64, error) { return a * b, nil }),
			sch:  binarySchema("First number", "Second number"),
		},
		{
			name: "divide_numbers",
			desc: "Divide first number by second number",
			fn: binaryTool(func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, errors.New("cannot divide by zero")
				}
				return a / b, nil
			}),
			sch: binarySchema("Dividend", "Divisor"),
		},
		{
			name: "subtract_numbers",
			desc: "Subtract second number from first",
			fn:   binaryTool(func(a, b float64) (float64, error) { return a - b, nil }),
			sch:  binarySchema("Number to subtract from", "Number to subtract"),
		},
		{
			name: "calculate_power",
			desc: "Calculate base raised to the power of exponent",
			fn: func(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args powerArgs
				if err := DecodeArgs(raw, &args); err != nil {
					return nil, err
				}
				if args.Base == nil || args.Exponent == nil {
					return nil, errMissingOperand
				}
				return numberResult(math.Pow(*args.Base, *args.Exponent))
			},
			sch: objectSchema(`"base":{"type":"number","description":"Base number"},"exponent":{"type":"number","description":"Exponent"}`, "base", "exponent"),
		},
		{
			name: "calculate_square_root",
			desc: "Calculate square root of a number",
			fn: func(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args sqrtArgs
				if err := DecodeArgs(raw, &args); err != nil {
					return nil, err
				}
				if args.Number == nil {
					return nil, errMissingOperand
				}
				if *args.Number < 0 {
					return nil, errors.New("cannot calculate square root of negative number")
				}
				return numberResult(math.Sqrt(*args.Number))
			},
			sch: objectSchema(`"number":{"type":"number","description":"Number to find square root of"}`, "number"),
		},
	}

	for _, d := range defs {
		meta := ToolMetadata{
			Schema: llm.ToolSchema{Name: d.name, Description: d.desc, Parameters: d.sch},
		}
		if err := reg.Register(d.name, d.fn, meta); err != nil {
			return err
		}
	}
	return nil
}

package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs 把 LLM 给出的参数宽松地解码到 dst（按 json tag 匹配）。
//
// 模型经常把数字写成字符串（"a": "3"），WeaklyTypedInput 会完成转换。
func DecodeArgs(raw json.RawMessage, dst any) error {
	input := map[string]any{}
	if s := strings.TrimSpace(string(raw)); s != "" && s != "null" {
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// TextResult 把文本结果编码为 JSON 字符串
func TextResult(s string) (json.RawMessage, error) {
	return json.Marshal(s)
}

func objectSchema(properties string, required ...string) json.RawMessage {
	req := "[]"
	if len(required) > 0 {
		b, _ := json.Marshal(required)
		req = string(b)
	}
	return json.RawMessage(fmt.Sprintf(`{"type":"object","properties":{%s},"required":%s}`, properties, req))
}

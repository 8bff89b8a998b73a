package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

type WeatherInput struct {
	City string `json:"city"`
}

type WeatherOutput struct {
	City      string `json:"city"`
	Condition string `json:"condition"`
	TempC     int    `json:"temp_c"`
}

// NewWeatherTool returns the builtin demo weather tool. It answers with
// canned data; a real deployment would back it with a weather API.
func NewWeatherTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: "get_weather",
			Desc: "Get current weather information for a city",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"city": {
					Type:     "string",
					Desc:     "The city to get weather for",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *WeatherInput) (*WeatherOutput, error) {
			if in.City == "" {
				return nil, fmt.Errorf("city is required")
			}
			return &WeatherOutput{City: in.City, Condition: "sunny", TempC: 22}, nil
		},
	)
}

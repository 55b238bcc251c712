package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"go.uber.org/zap"
)

// WeatherConfig 天气工具配置（Nominatim 地理编码 + Open-Meteo）
type WeatherConfig struct {
	GeocodeURL  string
	ForecastURL string
	UserAgent   string
	Timeout     time.Duration
	Client      *http.Client
}

// DefaultWeatherConfig 返回默认配置
func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		GeocodeURL:  "https://nominatim.openstreetmap.org/search",
		ForecastURL: "https://api.open-meteo.com/v1/forecast",
		UserAgent:   "AI-Agent/1.0",
		Timeout:     10 * time.Second,
	}
}

// WeatherKeywords get_weather 的意图关键词
var WeatherKeywords = []string{
	"weather", "temperature", "climate", "rain", "snow", "sunny", "cloudy", "forecast", "conditions",
}

// WMO 天气代码
var weatherCodes = map[int]string{
	0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Depositing rime fog", 51: "Light drizzle", 53: "Moderate drizzle",
	55: "Dense drizzle", 56: "Light freezing drizzle", 57: "Dense freezing drizzle",
	61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain", 66: "Light freezing rain",
	67: "Heavy freezing rain", 71: "Slight snow", 73: "Moderate snow", 75: "Heavy snow",
	77: "Snow grains", 80: "Slight rain showers", 81: "Moderate rain showers",
	82: "Violent rain showers", 85: "Slight snow showers", 86: "Heavy snow showers",
	95: "Thunderstorm", 96: "Thunderstorm with slight hail", 99: "Thunderstorm with heavy hail",
}

// WeatherCondition 返回 WMO 代码对应的描述
func WeatherCondition(code int) string {
	if c, ok := weatherCodes[code]; ok {
		return c
	}
	return fmt.Sprintf("Weather code %d", code)
}

var invalidLocationChars = regexp.MustCompile(`[^a-zA-Z\s,.-]`)

// ValidateLocation 清洗地点输入；不合法时返回空串
func ValidateLocation(location string) string {
	location = strings.TrimSpace(location)
	location = invalidLocationChars.ReplaceAllString(location, "")
	if len(location) < 2 {
		return ""
	}
	switch strings.ToLower(location) {
	case "n/a", "na", "none", "null", "undefined":
		return ""
	}
	return location
}

type geocodeResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature   json.Number `json:"temperature"`
		WindSpeed     json.Number `json:"windspeed"`
		WindDirection json.Number `json:"winddirection"`
		WeatherCode   int         `json:"weathercode"`
		Time          string      `json:"time"`
	} `json:"current_weather"`
}

// WeatherService 查询实时天气
type WeatherService struct {
	cfg    WeatherConfig
	client *http.Client
	logger *zap.Logger
}

// NewWeatherService 创建天气服务
func NewWeatherService(cfg WeatherConfig, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultWeatherConfig()
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = def.GeocodeURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = def.ForecastURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	client := cfg.Client
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	return &WeatherService{cfg: cfg, client: client, logger: logger.With(zap.String("tool", "get_weather"))}
}

// Current 返回地点的天气描述文本（仅 ASCII）；失败也以文本形式返回
func (w *WeatherService) Current(ctx context.Context, location string) string {
	validated := ValidateLocation(location)
	if validated == "" {
		return fmt.Sprintf("Invalid location '%s'. Please provide a valid city or location name.", location)
	}

	w.logger.Debug("getting weather", zap.String("location", validated))
	text, err := w.lookup(ctx, validated)
	if err != nil {
		w.logger.Warn("weather lookup failed", zap.String("location", validated), zap.Error(err))
		return fmt.Sprintf("Weather information temporarily unavailable for '%s'. Error: %v", location, err)
	}
	if text == "" {
		return fmt.Sprintf("Location '%s' not found. Please try a more specific location.", location)
	}
	return text
}

func (w *WeatherService) lookup(ctx context.Context, location string) (string, error) {
	var places []geocodeResult
	geoURL := w.cfg.GeocodeURL + "?" + url.Values{"format": {"json"}, "q": {location}}.Encode()
	if err := w.getJSON(ctx, geoURL, &places); err != nil {
		return "", fmt.Errorf("geocoding failed: %w", err)
	}
	if len(places) == 0 {
		return "", nil
	}
	place := places[0]

	params := url.Values{
		"latitude":        {place.Lat},
		"longitude":       {place.Lon},
		"current_weather": {"true"},
		"hourly":          {"temperature_2m,relative_humidity_2m,wind_speed_10m"},
		"timezone":        {"auto"},
		"forecast_days":   {"1"},
	}
	var forecast forecastResponse
	if err := w.getJSON(ctx, w.cfg.ForecastURL+"?"+params.Encode(), &forecast); err != nil {
		return "", fmt.Errorf("forecast failed: %w", err)
	}
	cur := forecast.CurrentWeather
	if cur == nil {
		return "", fmt.Errorf("forecast response has no current_weather")
	}

	text := fmt.Sprintf("Weather for %s:\nTemperature: %sC\nCondition: %s\nWind Speed: %s km/h\nWind Direction: %s degrees\nTime: %s",
		place.DisplayName, cur.Temperature, WeatherCondition(cur.WeatherCode), cur.WindSpeed, cur.WindDirection, cur.Time)
	return asciiOnly(text), nil
}

func (w *WeatherService) getJSON(ctx context.Context, u string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, providers.ReadErrorMessage(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
}

type weatherArgs struct {
	Location string `json:"location"`
}

// NewWeatherTool 构造 get_weather 工具
func NewWeatherTool(svc *WeatherService) (ToolFunc, ToolMetadata) {
	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args weatherArgs
		if err := DecodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return TextResult(svc.Current(ctx, args.Location))
	}
	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "get_weather",
			Description: "Get current weather information for any location worldwide",
			Parameters:  objectSchema(`"location":{"type":"string","description":"City, country, or location name"}`, "location"),
		},
		Timeout:   2*svc.cfg.Timeout + 5*time.Second,
		RateLimit: &RateLimitConfig{MaxCalls: 30, Window: time.Minute},
		Keywords:  WeatherKeywords,
	}
	return fn, meta
}

// IsWeatherSuccess 报告 get_weather 的输出是否为真实天气数据
func IsWeatherSuccess(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && strings.HasPrefix(s, "Weather for ")
}

package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leefowlercu/flapboard/internal/board"
)

type stubWeather struct {
	data *WeatherData
	err  error
}

func (s stubWeather) GetWeather(context.Context) (*WeatherData, error) {
	return s.data, s.err
}

type stubColors struct {
	colors [6]int
	err    error
}

func (s stubColors) GetColors(context.Context) ([6]int, error) {
	return s.colors, s.err
}

func TestProvider_FetchDataBothSucceed(t *testing.T) {
	weather := stubWeather{data: &WeatherData{Temperature: 72, Units: "imperial", Condition: "Sunny"}}
	colors := stubColors{colors: [6]int{63, 64, 65, 66, 67, 68}}
	fixed := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

	p := NewProvider(weather, colors, WithProviderClock(func() time.Time { return fixed }))
	data := p.FetchData(context.Background())

	require.NotNil(t, data.Weather)
	assert.Equal(t, 72, data.Weather.Temperature)
	require.NotNil(t, data.ColorBar)
	assert.Equal(t, [6]int{63, 64, 65, 66, 67, 68}, *data.ColorBar)
	assert.Equal(t, fixed, data.FetchedAt)
	assert.Empty(t, data.Warnings)
}

func TestProvider_FetchDataDegradesPerSource(t *testing.T) {
	weather := stubWeather{err: errors.New("upstream 500")}
	colors := stubColors{colors: [6]int{69, 69, 69, 69, 69, 69}}

	data := NewProvider(weather, colors).FetchData(context.Background())

	assert.Nil(t, data.Weather)
	require.NotNil(t, data.ColorBar)
	require.Len(t, data.Warnings, 1)
	assert.Contains(t, data.Warnings[0], "weather")
}

func TestProvider_FetchDataNeverFails(t *testing.T) {
	weather := stubWeather{err: errors.New("down")}
	colors := stubColors{err: errors.New("also down")}

	data := NewProvider(weather, colors).FetchData(context.Background())

	assert.Nil(t, data.Weather)
	assert.Nil(t, data.ColorBar)
	assert.Len(t, data.Warnings, 2)
	assert.False(t, data.FetchedAt.IsZero())
}

func TestProvider_FetchDataNilWeatherIsWarned(t *testing.T) {
	data := NewProvider(stubWeather{}, stubColors{}).FetchData(context.Background())

	assert.Nil(t, data.Weather)
	require.NotEmpty(t, data.Warnings)
	assert.Contains(t, data.Warnings[0], "weather")
}

func TestProvider_FetchDataNilServices(t *testing.T) {
	data := NewProvider(nil, nil).FetchData(context.Background())

	assert.Nil(t, data.Weather)
	assert.Nil(t, data.ColorBar)
	assert.Len(t, data.Warnings, 2)
}

func TestPaletteService_TimeOfDay(t *testing.T) {
	at := func(hour int) *PaletteService {
		return NewPaletteService(WithPaletteClock(func() time.Time {
			return time.Date(2026, 8, 24, hour, 0, 0, 0, time.UTC)
		}))
	}

	dawn, err := at(6).GetColors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.CodeViolet, dawn[0])

	day, err := at(12).GetColors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.CodeBlue, day[5])

	night, err := at(2).GetColors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, board.CodeBlack, night[0])
}

func TestWeatherData_UnitGlyph(t *testing.T) {
	assert.Equal(t, "F", WeatherData{Units: "imperial"}.UnitGlyph())
	assert.Equal(t, "C", WeatherData{Units: "metric"}.UnitGlyph())
	assert.Equal(t, "F", WeatherData{}.UnitGlyph())
}

func TestConditionForCode(t *testing.T) {
	assert.Equal(t, "Sunny", conditionForCode(0))
	assert.Equal(t, "Cloudy", conditionForCode(3))
	assert.Equal(t, "Rain", conditionForCode(63))
	assert.Equal(t, "Snow", conditionForCode(73))
	assert.Equal(t, "Storm", conditionForCode(95))
}

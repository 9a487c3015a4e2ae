package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a named list of walkthrough steps built by a Lua script.
type Scenario struct {
	Name string
	// Story is the story id to play. Empty means the runner's default.
	Story string
	Steps []Step
}

// Step is one scenario instruction.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile runs a Lua script that must return a Scenario.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := newLuaState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runScript(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// LoadScenarioFromString is LoadScenarioFromFile for inline scripts.
func LoadScenarioFromString(source string) (*Scenario, error) {
	state := newLuaState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return runScript(state)
}

func newLuaState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerScenarioConstructor(state)
	return state
}

func runScript(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

// scenarioNew implements Scenario.new(name [, {story = id}]).
func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	opts := optionalTable(state, 2)
	scenario := &Scenario{Name: name, Story: optionalString(opts, "story", "")}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "state", Function: scenarioSetState},
	{Name: "start", Function: scenarioStart},
	{Name: "restart", Function: scenarioRestart},
	{Name: "choose", Function: scenarioChoose},
	{Name: "expect_chapter", Function: scenarioExpectChapter},
	{Name: "expect_text", Function: scenarioExpectText},
	{Name: "reject_text", Function: scenarioRejectText},
	{Name: "expect_state", Function: scenarioExpectState},
	{Name: "expect_ending", Function: scenarioExpectEnding},
	{Name: "expect_options", Function: scenarioExpectOptions},
}

// Every method returns the scenario so calls can chain.
func chain(state *lua.State) int {
	state.PushValue(1)
	return 1
}

func scenarioSetState(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "state", map[string]any{"values": tableToMap(state, 2)})
	return chain(state)
}

func scenarioStart(state *lua.State) int {
	scenario := checkScenario(state)
	chapter := lua.OptInteger(state, 2, 1)
	appendStep(scenario, "start", map[string]any{"chapter": chapter})
	return chain(state)
}

func scenarioRestart(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "restart", nil)
	return chain(state)
}

// scenarioChoose implements scene:choose(n [, {expect_error = CODE}]).
func scenarioChoose(state *lua.State) int {
	scenario := checkScenario(state)
	option := lua.CheckInteger(state, 2)
	data := optionalTable(state, 3)
	data["option"] = option
	appendStep(scenario, "choose", data)
	return chain(state)
}

func scenarioExpectChapter(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "expect_chapter", map[string]any{"chapter": lua.CheckInteger(state, 2)})
	return chain(state)
}

func scenarioExpectText(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "expect_text", map[string]any{"text": lua.CheckString(state, 2)})
	return chain(state)
}

func scenarioRejectText(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "reject_text", map[string]any{"text": lua.CheckString(state, 2)})
	return chain(state)
}

// scenarioExpectState implements scene:expect_state(name [, value]). A
// missing value expects the variable to be unset.
func scenarioExpectState(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	data := map[string]any{"name": name}
	if state.IsNoneOrNil(3) {
		data["absent"] = true
	} else {
		data["value"] = luaToGo(state, 3)
	}
	appendStep(scenario, "expect_state", data)
	return chain(state)
}

func scenarioExpectEnding(state *lua.State) int {
	scenario := checkScenario(state)
	ending := true
	if !state.IsNoneOrNil(2) {
		ending = state.ToBoolean(2)
	}
	appendStep(scenario, "expect_ending", map[string]any{"ending": ending})
	return chain(state)
}

// scenarioExpectOptions implements scene:expect_options(count [, {advisory = n}]).
func scenarioExpectOptions(state *lua.State) int {
	scenario := checkScenario(state)
	count := lua.CheckInteger(state, 2)
	data := optionalTable(state, 3)
	data["count"] = count
	appendStep(scenario, "expect_options", data)
	return chain(state)
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) {
	if scenario == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToMap(state, index)
	default:
		return nil
	}
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}

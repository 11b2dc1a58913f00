package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/solvernet/mathrouter/internal/util"
)

// RegisterBuiltInActions registers the default action handlers.
func RegisterBuiltInActions(m *Manager) {
	m.RegisterAction(ActionLogWarning, handleLogWarning)
	lr := NewLuaRunner(m.HooksDir())
	m.RegisterAction(ActionRunLua, lr.Handle)
}

func handleLogWarning(hook *Hook, evt *EventContext) error {
	msg, _ := hook.Params["message"].(string)
	if msg == "" {
		msg = "Hook triggered"
	}
	log.Warnf("[Hook: %s] %s (Event: %s)", hook.Name, msg, evt.Event)
	return nil
}

const luaRunTimeout = 5 * time.Second

// LuaRunner executes hook scripts in a sandboxed Lua state. Scripts see the
// triggering event as a read-only "event" table and can report through a
// "log" table; they get no filesystem, network, or process access and no
// way back into the routing pipeline.
type LuaRunner struct {
	baseDir string

	mu     sync.Mutex
	protos map[string]*compiledScript
}

type compiledScript struct {
	proto   *lua.FunctionProto
	modTime time.Time
}

// NewLuaRunner creates a runner resolving relative script paths against
// baseDir.
func NewLuaRunner(baseDir string) *LuaRunner {
	return &LuaRunner{
		baseDir: baseDir,
		protos:  make(map[string]*compiledScript),
	}
}

// Handle is the run_lua action. Params: "file" names a script on disk
// (relative paths resolve against the hooks directory); "script" carries
// inline source. "file" wins when both are set.
func (r *LuaRunner) Handle(hook *Hook, evt *EventContext) error {
	file, _ := hook.Params["file"].(string)
	inline, _ := hook.Params["script"].(string)

	var (
		proto *lua.FunctionProto
		err   error
	)
	switch {
	case file != "":
		proto, err = r.compileFile(file)
	case inline != "":
		proto, err = r.compileInline(inline)
	default:
		return fmt.Errorf("run_lua requires a 'file' or 'script' param")
	}
	if err != nil {
		return err
	}

	return runLua(proto, evt)
}

// compileFile compiles the script at path, reusing the cached chunk while
// the file's modification time is unchanged. Edited scripts recompile on
// the next event without a process restart.
func (r *LuaRunner) compileFile(file string) (*lua.FunctionProto, error) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat lua script: %w", err)
	}

	r.mu.Lock()
	cached, ok := r.protos[path]
	r.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.proto, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lua script: %w", err)
	}

	proto, err := compileLua(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to compile lua script %s: %w", path, err)
	}

	r.mu.Lock()
	r.protos[path] = &compiledScript{proto: proto, modTime: info.ModTime()}
	r.mu.Unlock()
	return proto, nil
}

func (r *LuaRunner) compileInline(src string) (*lua.FunctionProto, error) {
	key := "inline:" + util.Fingerprint(src)

	r.mu.Lock()
	cached, ok := r.protos[key]
	r.mu.Unlock()
	if ok {
		return cached.proto, nil
	}

	proto, err := compileLua(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile inline lua script: %w", err)
	}

	r.mu.Lock()
	r.protos[key] = &compiledScript{proto: proto}
	r.mu.Unlock()
	return proto, nil
}

// compileLua builds a state-independent chunk that can later run in any
// sandbox state.
func compileLua(src string) (*lua.FunctionProto, error) {
	L := lua.NewState()
	defer L.Close()

	fn, err := L.LoadString(src)
	if err != nil {
		return nil, err
	}
	return fn.Proto, nil
}

// runLua executes a compiled chunk in a fresh sandbox. One state per run
// keeps globals from leaking between scripts.
func runLua(proto *lua.FunctionProto, evt *EventContext) error {
	L := newSandbox()
	defer L.Close()

	runCtx, cancel := context.WithTimeout(context.Background(), luaRunTimeout)
	defer cancel()
	L.SetContext(runCtx)

	L.SetGlobal("event", readOnlyTable(L, eventTable(L, evt)))

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("lua script failed: %w", err)
	}
	return nil
}

// newSandbox builds a Lua state with only safe libraries loaded. The os and
// io libraries stay out entirely.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// OpenBase installs file loaders; remove them.
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)

	logTbl := L.NewTable()
	L.SetField(logTbl, "info", L.NewFunction(func(L *lua.LState) int {
		log.Infof("[Hook lua] %s", L.CheckString(1))
		return 0
	}))
	L.SetField(logTbl, "warn", L.NewFunction(func(L *lua.LState) int {
		log.Warnf("[Hook lua] %s", L.CheckString(1))
		return 0
	}))
	L.SetGlobal("log", logTbl)

	return L
}

// eventTable mirrors the event into a Lua table. Values are copies, so a
// script can never mutate the EventContext other subscribers see. The data
// sub-table stays a plain table to keep pairs() iteration working.
func eventTable(L *lua.LState, evt *EventContext) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "event", lua.LString(evt.Event))
	L.SetField(tbl, "timestamp", lua.LNumber(evt.Timestamp.Unix()))
	L.SetField(tbl, "query", lua.LString(evt.Query))
	L.SetField(tbl, "route", lua.LString(evt.Route))
	L.SetField(tbl, "confidence", lua.LNumber(evt.Confidence))
	if msg := evt.errorText(); msg != "" {
		L.SetField(tbl, "error", lua.LString(msg))
	}
	L.SetField(tbl, "data", goMapToLuaTable(L, evt.Data))
	return tbl
}

// readOnlyTable wraps tbl in a proxy whose writes raise a Lua error.
func readOnlyTable(L *lua.LState, tbl *lua.LTable) *lua.LTable {
	proxy := L.NewTable()
	mt := L.NewTable()
	L.SetField(mt, "__index", tbl)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("event table is read-only")
		return 0
	}))
	L.SetMetatable(proxy, mt)
	return proxy
}

func goMapToLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, goValueToLua(L, v))
	}
	return tbl
}

func goValueToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		tbl := L.NewTable()
		for i, item := range val {
			L.RawSetInt(tbl, i+1, lua.LString(item))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			L.RawSetInt(tbl, i+1, goValueToLua(L, item))
		}
		return tbl
	case map[string]any:
		return goMapToLuaTable(L, val)
	case map[string]float64:
		tbl := L.NewTable()
		for k, f := range val {
			L.SetField(tbl, k, lua.LNumber(f))
		}
		return tbl
	case time.Time:
		return lua.LNumber(val.Unix())
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

package script

import (
	"math"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// toGo converts a Lua value into something sjson can encode.
// Functions and userdata become nil; cycles are cut at the repeated table.
func toGo(lv lua.LValue) any {
	return toGoVisited(lv, make(map[*lua.LTable]bool))
}

func toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	default:
		return nil
	}
}

// tableToGo returns a slice for sequences 1..n and a map otherwise.
// An empty table is an empty object.
func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if n > 0 && n == count {
		items := make([]any, n)
		for i := 1; i <= n; i++ {
			items[i-1] = toGoVisited(t.RawGetInt(i), visited)
		}
		return items
	}

	obj := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		obj[k.String()] = toGoVisited(v, visited)
	})
	return obj
}

// fromJSON converts a document value into a Lua value. Arrays are 1-based.
func fromJSON(L *lua.LState, r gjson.Result) lua.LValue {
	switch r.Type {
	case gjson.True:
		return lua.LTrue
	case gjson.False:
		return lua.LFalse
	case gjson.Number:
		return lua.LNumber(r.Num)
	case gjson.String:
		return lua.LString(r.Str)
	case gjson.JSON:
		tbl := L.NewTable()
		if r.IsArray() {
			for _, item := range r.Array() {
				tbl.Append(fromJSON(L, item))
			}
			return tbl
		}
		r.ForEach(func(k, v gjson.Result) bool {
			tbl.RawSetString(k.Str, fromJSON(L, v))
			return true
		})
		return tbl
	default:
		return lua.LNil
	}
}

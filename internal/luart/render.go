package luart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// maxTableEntries bounds how many table entries are rendered for a watch
// value.
const maxTableEntries = 16

// renderValue renders a Lua value for the wire. Numbers render without a
// trailing fraction when integral, strings are quoted, and tables render
// as Lua-style constructors with cycles and size capped.
func renderValue(lv lua.LValue) string {
	return render(lv, make(map[*lua.LTable]bool))
}

func render(lv lua.LValue, visited map[*lua.LTable]bool) string {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return "nil"
	case lua.LBool:
		if v {
			return "true"
		}
		return "false"
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case lua.LString:
		return strconv.Quote(string(v))
	case *lua.LTable:
		return renderTable(v, visited)
	case *lua.LFunction:
		return "function"
	case *lua.LUserData:
		return fmt.Sprintf("userdata: %v", v.Value)
	default:
		return lv.String()
	}
}

func renderTable(t *lua.LTable, visited map[*lua.LTable]bool) string {
	if visited[t] {
		return "{...}"
	}
	visited[t] = true

	// Array part first, in index order.
	var parts []string
	n := t.MaxN()
	for i := 1; i <= n && len(parts) < maxTableEntries; i++ {
		parts = append(parts, render(t.RawGetInt(i), visited))
	}

	// Remaining keys sorted for a stable rendering.
	type pair struct{ key, val string }
	var rest []pair
	t.ForEach(func(k, v lua.LValue) {
		if kn, ok := k.(lua.LNumber); ok {
			i := int(kn)
			if float64(i) == float64(kn) && i >= 1 && i <= n {
				return
			}
		}
		rest = append(rest, pair{key: k.String(), val: render(v, visited)})
	})
	sort.Slice(rest, func(i, j int) bool { return rest[i].key < rest[j].key })
	for _, p := range rest {
		if len(parts) >= maxTableEntries {
			break
		}
		parts = append(parts, p.key+" = "+p.val)
	}

	if t.Len() > maxTableEntries || len(rest)+n > maxTableEntries {
		parts = append(parts, "...")
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

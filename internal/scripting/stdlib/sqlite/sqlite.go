// Package sqlite implements the script-visible `sqlite` capability:
// sqlite.open(path) returning a connection with exec/query. Grounded on
// original_source/src/userdata/sqlite.rs. Uses github.com/mattn/go-sqlite3,
// blank-imported as the database/sql driver.
package sqlite

import (
	"database/sql"

	lua "github.com/yuin/gopher-lua"

	_ "github.com/mattn/go-sqlite3"
)

const connTypeName = "tinysse.sqlite.conn"

// Register installs the `sqlite` global table with an `open` function.
func Register(l *lua.LState) {
	mt := l.NewTypeMetatable(connTypeName)
	l.SetField(mt, "__index", l.SetFuncs(l.NewTable(), map[string]lua.LGFunction{
		"exec":  connExec,
		"query": connQuery,
		"close": connClose,
	}))

	tbl := l.NewTable()
	l.SetFuncs(tbl, map[string]lua.LGFunction{
		"open": luaOpen,
	})
	l.SetGlobal("sqlite", tbl)
}

func luaOpen(L *lua.LState) int {
	path := L.CheckString(1)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		L.RaiseError("sqlite.open: %v", err)
		return 0
	}
	ud := L.NewUserData()
	ud.Value = db
	L.SetMetatable(ud, L.GetTypeMetatable(connTypeName))
	L.Push(ud)
	return 1
}

func checkConn(L *lua.LState) *sql.DB {
	ud, ok := L.Get(1).(*lua.LUserData)
	if !ok {
		L.RaiseError("sqlite: expected a connection")
		return nil
	}
	db, ok := ud.Value.(*sql.DB)
	if !ok {
		L.RaiseError("sqlite: corrupt connection userdata")
		return nil
	}
	return db
}

func luaArgsToGo(L *lua.LState, idx int) []interface{} {
	tbl, ok := L.Get(idx).(*lua.LTable)
	if !ok {
		return nil
	}
	n := tbl.Len()
	args := make([]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		args = append(args, luaScalar(tbl.RawGetInt(i)))
	}
	return args
}

func luaScalar(v lua.LValue) interface{} {
	switch t := v.(type) {
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return float64(t)
	case lua.LBool:
		return bool(t)
	default:
		return nil
	}
}

func connExec(L *lua.LState) int {
	db := checkConn(L)
	if db == nil {
		return 0
	}
	stmt := L.CheckString(2)
	args := luaArgsToGo(L, 3)
	res, err := db.Exec(stmt, args...)
	if err != nil {
		L.RaiseError("sqlite.exec: %v", err)
		return 0
	}
	rowsAffected, _ := res.RowsAffected()
	lastInsertID, _ := res.LastInsertId()
	out := L.NewTable()
	out.RawSetString("rows_affected", lua.LNumber(rowsAffected))
	out.RawSetString("last_insert_id", lua.LNumber(lastInsertID))
	L.Push(out)
	return 1
}

func connQuery(L *lua.LState) int {
	db := checkConn(L)
	if db == nil {
		return 0
	}
	stmt := L.CheckString(2)
	args := luaArgsToGo(L, 3)
	rows, err := db.Query(stmt, args...)
	if err != nil {
		L.RaiseError("sqlite.query: %v", err)
		return 0
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		L.RaiseError("sqlite.query: %v", err)
		return 0
	}

	out := L.NewTable()
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			L.RaiseError("sqlite.query: %v", err)
			return 0
		}
		rowTbl := L.NewTable()
		for i, col := range cols {
			rowTbl.RawSetString(col, goValueToLua(vals[i]))
		}
		out.Append(rowTbl)
	}
	L.Push(out)
	return 1
}

func connClose(L *lua.LState) int {
	db := checkConn(L)
	if db == nil {
		return 0
	}
	if err := db.Close(); err != nil {
		L.RaiseError("sqlite.close: %v", err)
	}
	return 0
}

func goValueToLua(v interface{}) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case int64:
		return lua.LNumber(t)
	case float64:
		return lua.LNumber(t)
	case string:
		return lua.LString(t)
	case []byte:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	default:
		return lua.LNil
	}
}

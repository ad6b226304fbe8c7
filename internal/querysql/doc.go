// Package querysql compiles predicate IR to parameterized SQLite SQL
// over JSON document bodies. Field access goes through json_extract;
// every assembled statement carries a deterministic ORDER BY.
package querysql

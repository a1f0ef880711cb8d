package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/qindex/internal/ir"
)

// Dictionary column names.
const (
	ColQName          = "qname"
	ColTableName      = "table_name"
	ColMemberKind     = "member_kind"
	ColCollDepth      = "collection_depth"
	ColFinalType      = "final_type"
	ColClassID        = "class_id"
	ColClassName      = "class_name"
	ColEnumID         = "enum_id"
	ColEnumValue      = "enum_value"
	indexEntitySuffix = "_entity"
	indexValueSuffix  = "_value"
)

// BaseTableDDL returns the statements creating the entity, join,
// dictionary and version tables. Statements are idempotent.
func BaseTableDDL(d Dialect, schemaName string) []string {
	t := func(name string) string { return d.Table(schemaName, name) }
	bigint := d.SQLType(ColInt)
	text := d.SQLType(ColText)

	stmts := append([]string(nil), d.CreateSchema(schemaName)...)
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	%s %s NOT NULL,
	%s %s NOT NULL UNIQUE,
	%s %s NOT NULL,
	%s %s,
	%s %s
)`, t(TableEntities),
			d.AutoIncrementKey(ColEntityPK),
			ColEntityTypeID, bigint,
			ColIdentity, text,
			ColModified, bigint,
			ColEntityVersion, text,
			ColAppVersion, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s NOT NULL REFERENCES %s (%s) ON DELETE CASCADE,
	%s %s NOT NULL,
	PRIMARY KEY (%s, %s)
)`, t(TableEntityTypesJoin),
			ColEntityPK, bigint, t(TableEntities), ColEntityPK,
			ColEntityTypeID, bigint,
			ColEntityPK, ColEntityTypeID),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			d.Index(schemaName, TableEntityTypesJoin+"_type"), t(TableEntityTypesJoin), ColEntityTypeID),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s NOT NULL,
	%s %s NOT NULL REFERENCES %s (%s) ON DELETE CASCADE,
	PRIMARY KEY (%s, %s)
)`, t(TableAllQNames),
			ColQNameID, bigint,
			ColEntityPK, bigint, t(TableEntities), ColEntityPK,
			ColQNameID, ColEntityPK),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			d.Index(schemaName, TableAllQNames+indexEntitySuffix), t(TableAllQNames), ColEntityPK),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s PRIMARY KEY,
	%s %s NOT NULL UNIQUE,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s %s NOT NULL
)`, t(TableQNames),
			ColQName, text,
			ColTableName, text,
			ColMemberKind, text,
			ColCollDepth, bigint,
			ColFinalType, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s PRIMARY KEY,
	%s %s NOT NULL UNIQUE
)`, t(TableEntityTypes), ColEntityTypeID, bigint, ColEntityTypeName, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s PRIMARY KEY,
	%s %s NOT NULL UNIQUE
)`, t(TableUsedClasses), ColClassID, bigint, ColClassName, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s PRIMARY KEY,
	%s %s NOT NULL UNIQUE
)`, t(TableEnumLookup), ColEnumID, bigint, ColEnumValue, text),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s NOT NULL,
	%s %s NOT NULL
)`, t(TableAppVersion), ColAppVersion, text, ColLayoutVersion, text),
	)
	return stmts
}

// QNameTableDDL returns the statements creating the value table of one
// qualified name.
func QNameTableDDL(d Dialect, schemaName string, info *QNameInfo) []string {
	table := d.Table(schemaName, info.Table)
	bigint := d.SQLType(ColInt)

	cols := []string{
		fmt.Sprintf("%s %s NOT NULL", ColQNameID, bigint),
		fmt.Sprintf("%s %s NOT NULL", ColEntityPK, bigint),
		fmt.Sprintf("%s %s", ColParentQName, bigint),
	}
	if info.CollectionDepth > 0 {
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", ColCollectionPath, d.SQLType(ColText)))
	}
	switch info.Kind {
	case ir.MemberProperty:
		cols = append(cols, fmt.Sprintf("%s %s", ColValue, d.SQLType(info.ValueColumnType())))
	default:
		cols = append(cols, fmt.Sprintf("%s %s REFERENCES %s (%s) ON DELETE SET NULL",
			ColTargetPK, bigint, d.Table(schemaName, TableEntities), ColEntityPK))
	}
	if info.Kind == ir.MemberManyAssociation {
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", ColIndex, bigint))
	}
	cols = append(cols,
		fmt.Sprintf("PRIMARY KEY (%s, %s)", ColQNameID, ColEntityPK),
		fmt.Sprintf("FOREIGN KEY (%s, %s) REFERENCES %s (%s, %s) ON DELETE CASCADE",
			ColQNameID, ColEntityPK, d.Table(schemaName, TableAllQNames), ColQNameID, ColEntityPK),
	)

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", table, strings.Join(cols, ",\n\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			d.Index(schemaName, info.Table+indexEntitySuffix), table, ColEntityPK),
	}
	valueCol := ColValue
	if info.Kind != ir.MemberProperty {
		valueCol = ColTargetPK
	}
	stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Index(schemaName, info.Table+indexValueSuffix), table, valueCol))
	return stmts
}

// DropDDL returns the statements dropping the given value tables and every
// base table except the entity table, children first.
func DropDDL(d Dialect, schemaName string, valueTables []string) []string {
	stmts := make([]string, 0, len(valueTables)+7)
	for _, vt := range valueTables {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+d.Table(schemaName, vt))
	}
	for _, bt := range []string{
		TableAllQNames,
		TableEntityTypesJoin,
		TableQNames,
		TableEntityTypes,
		TableUsedClasses,
		TableEnumLookup,
		TableAppVersion,
	} {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+d.Table(schemaName, bt))
	}
	return stmts
}

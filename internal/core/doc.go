// Package core holds the import domain: which tables may be imported into,
// how spreadsheet columns map onto table columns, and how a confirmed
// mapping is executed. It has no transport dependencies.
//
// # Table Registry
//
// Importable tables are registered at init time using [Register]; a table
// name from a client never reaches storage unless registered:
//
//	core.Register(core.TableDefinition{
//	    Info: core.TableInfo{Key: "student_info", Group: "School", Label: "Students"},
//	    Columns: []core.ColumnDescriptor{
//	        {Name: "name", DataType: "varchar(64)"},
//	        {Name: "sex", DataType: "char(1)", Nullable: true},
//	    },
//	})
//
// The live column list comes from the storage collaborator through
// [ColumnRegistry], cached per table for the process lifetime.
//
// # Import flow
//
//  1. [Service.Analyze] stores the upload and returns a [Preview] of the
//     spreadsheet headers and editable table columns.
//  2. The client confirms a list of [FieldMapping] values.
//  3. [Resolver.BuildPlan] validates them into a single-use [ImportPlan].
//  4. [Importer.Execute] coerces every row, appends the audit fields and
//     hands all rows to one [BulkInserter] transaction.
//
// # Error Handling
//
// Error kinds are sentinel values matched with errors.Is ([ErrUnknownTable],
// [ErrInvalidMapping], [ErrMissingColumn], [ErrPartialImport],
// [ErrStorageUnavailable]); [MapError] turns any error into a [UserMessage]
// with a support code.
package core

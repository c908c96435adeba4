package tables

import "github.com/JonMunkholm/ingest/internal/core"

func init() {
	registerStudentInfo()
}

func registerStudentInfo() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:   "student_info",
			Group: "School",
			Label: "Students",
		},
		Columns: append([]core.ColumnDescriptor{
			{Name: "id", DataType: "bigint", PrimaryKey: true, Comment: "Student ID"},
			{Name: "name", DataType: "varchar(64)", Comment: "Name"},
			{Name: "gender", DataType: "char(1)", Nullable: true, Comment: "Gender"},
			{Name: "phone_number", DataType: "varchar(32)", Nullable: true, Comment: "Phone number"},
			{Name: "birthday", DataType: "date", Nullable: true, Comment: "Birthday"},
			{Name: "grade", DataType: "integer", Nullable: true, Comment: "Grade"},
		}, auditColumns()...),
	})
}

// auditColumns are the system columns every importable table carries.
func auditColumns() []core.ColumnDescriptor {
	return []core.ColumnDescriptor{
		{Name: "create_by", DataType: "bigint", Nullable: true},
		{Name: "dept_id", DataType: "bigint", Nullable: true},
		{Name: "create_time", DataType: "timestamp", Nullable: true},
		{Name: "update_time", DataType: "timestamp", Nullable: true},
		{Name: "del_flag", DataType: "char(1)", Nullable: true},
	}
}

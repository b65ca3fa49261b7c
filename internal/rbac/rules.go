package rbac

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// RolePermissions is the default policy. Roles are flat capability sets; no
// role inherits from another.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"question:view",
		"quiz:answer",
		"evaluation:submit",
	},
	RoleTeacher: {
		"roster:*",
		"progress:view-all",
		"scores:*",
		"dashboard:view",
		"kkm:*",
		"question:*",
	},
}

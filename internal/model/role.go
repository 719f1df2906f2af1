package model

// Role values carried on users and approval stages
const (
	RoleAdmin            = "ADMIN"
	RoleTransportOfficer = "TRANSPORT_OFFICER"
	RoleHOD              = "HOD"
	RoleDriver           = "DRIVER"
	RoleUser             = "USER"
)

// Department values
const (
	DepartmentCSE     = "CSE"
	DepartmentEEE     = "EEE"
	DepartmentCEE     = "CEE"
	DepartmentMPE     = "MPE"
	DepartmentGeneral = "GENERAL"
)

var allRoles = []string{RoleAdmin, RoleTransportOfficer, RoleHOD, RoleDriver, RoleUser}

var allDepartments = []string{DepartmentCSE, DepartmentEEE, DepartmentCEE, DepartmentMPE, DepartmentGeneral}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	for _, r := range allRoles {
		if r == role {
			return true
		}
	}
	return false
}

func ValidDepartment(dept string) bool {
	for _, d := range allDepartments {
		if d == dept {
			return true
		}
	}
	return false
}

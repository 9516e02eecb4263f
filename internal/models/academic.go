package models

// College is the tenant owning classrooms, lecturers, courses and runs.
type College struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Course is a programme students enrol in.
type Course struct {
	ID        string `db:"id" json:"id"`
	CollegeID string `db:"college_id" json:"college_id"`
	Name      string `db:"name" json:"name"`
}

// Lecturer is a user with the LECTURER role.
type Lecturer struct {
	ID        string `db:"id" json:"id"`
	CollegeID string `db:"college_id" json:"college_id"`
	Username  string `db:"username" json:"username"`
	FullName  string `db:"full_name" json:"full_name"`
}

// DisplayName prefers the full name.
func (l Lecturer) DisplayName() string {
	if l.FullName != "" {
		return l.FullName
	}
	return l.Username
}

// CourseUnit is a course-to-unit assignment for one semester joined with the unit and its lecturer.
type CourseUnit struct {
	CourseID         string  `db:"course_id" json:"course_id"`
	UnitID           string  `db:"unit_id" json:"unit_id"`
	CollegeID        string  `db:"college_id" json:"college_id"`
	YearOfStudy      int     `db:"year_of_study" json:"year_of_study"`
	Semester         int     `db:"semester" json:"semester"`
	UnitCode         string  `db:"unit_code" json:"unit_code"`
	UnitName         string  `db:"unit_name" json:"unit_name"`
	LecturerID       *string `db:"lecturer_id" json:"lecturer_id,omitempty"`
	LecturerUsername *string `db:"lecturer_username" json:"lecturer_username,omitempty"`
}

// HasLecturer reports whether the unit can be scheduled.
func (c CourseUnit) HasLecturer() bool {
	return c.LecturerID != nil && *c.LecturerID != ""
}

// SchedulableUnit is an eligible (course, unit) pair with its assigned lecturer.
type SchedulableUnit struct {
	CourseID         string `json:"course_id"`
	CourseName       string `json:"course_name"`
	UnitID           string `json:"unit_id"`
	UnitCode         string `json:"unit_code"`
	UnitName         string `json:"unit_name"`
	LecturerID       string `json:"lecturer_id"`
	LecturerUsername string `json:"lecturer_username"`
}

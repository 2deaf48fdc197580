package console

import (
	"fmt"
	"regexp"
)

// GetAll builds the console command that prints property for every live
// instance of class.
func GetAll(class, property string) string {
	return fmt.Sprintf("GetAll %s %s", class, property)
}

// ObjectRef matches a property value that is either None or a reference to a
// level object of class, capturing the object name into group. The group is
// empty when the value is None.
func ObjectRef(class, group string) string {
	return fmt.Sprintf(`(?:None|%s'.+?:PersistentLevel\.(?P<%s>%s_\d+)')?`, class, group, class)
}

// Property compiles the pattern for one "GetAll class property" row:
//
//	"0) BP_FigureV2_C /Game/Maps/Plate/Plate.Plate:PersistentLevel.BP_FigureV2_C_2147482311.bIsDead = False"
//
// The owning object's name is captured into group and the row number into "index".
// value is a regexp fragment for the right-hand side.
func Property(class, group, property, value string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`^(?P<index>\d+)\) %s .+?PersistentLevel\.(?P<%s>%s_\d+)\.%s = %s$`,
		class, group, class, regexp.QuoteMeta(property), value,
	))
}

// ArrayHeader compiles the pattern for the header row of an array property,
// whose elements follow on their own lines.
func ArrayHeader(class, group, property string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`^(?P<index>\d+)\) %s .+?:PersistentLevel\.(?P<%s>%s_\d+)\.%s =$`,
		class, group, class, regexp.QuoteMeta(property),
	))
}

// ArrayElement matches one "\t<index>: <column>" element of an integer array property.
var ArrayElement = regexp.MustCompile(`^\t(?P<index>\d+): (?P<column>-?\d+)$`)

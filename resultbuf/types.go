package resultbuf

// Type is the scalar type tag of a result column. Values match the tags
// emitted by the native library's buffer writer.
type Type int32

const (
	TypeInt      Type = 1
	TypeLong     Type = 2
	TypeFloat    Type = 3
	TypeDouble   Type = 4
	TypeBool     Type = 5
	TypeString   Type = 6
	TypeDate     Type = 7
	TypeGeometry Type = 8
	TypeOther    Type = 99
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeDate:
		return "date"
	case TypeGeometry:
		return "geometry"
	case TypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// known reports whether the decoder understands the tag's row encoding.
// Unknown tags are carried as columns of null values and their payload
// is never interpreted.
func (t Type) known() bool {
	switch t {
	case TypeInt, TypeLong, TypeFloat, TypeDouble, TypeBool, TypeString, TypeDate, TypeGeometry:
		return true
	}
	return false
}

// Column describes one column of a decoded buffer.
type Column struct {
	Name string
	Type Type
}

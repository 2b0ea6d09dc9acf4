package constants

// Split identifies which dataset partition a batch writes to.
type Split string

const (
	// SplitTrain is the training partition.
	SplitTrain Split = "train"

	// SplitTest is the held-out evaluation partition.
	SplitTest Split = "test"
)

// Valid returns true if the split is a recognized value.
func (s Split) Valid() bool {
	switch s {
	case SplitTrain, SplitTest:
		return true
	}
	return false
}

// String returns the string representation of the split.
func (s Split) String() string {
	return string(s)
}

// Index returns a small stable number for the split, used to separate
// random streams of the two partitions.
func (s Split) Index() uint64 {
	if s == SplitTest {
		return 1
	}
	return 0
}

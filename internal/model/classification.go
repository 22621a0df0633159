package model

// Complexity buckets an Item by how much judgment effort it warrants.
// The Router's Lightning Paths table and the Q-learner both key on this.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityEpic     Complexity = "epic"
)

// Classification is derived from an Item by the Classifier. Never mutated
// after creation.
type Classification struct {
	Intent     string
	Domain     string
	Complexity Complexity
	EstCost    float64
}

// TimeOfDayBucket partitions a day for the QState feature vector. Coarse
// buckets keep the Q-table sparse instead of keying on the exact hour.
type TimeOfDayBucket string

const (
	BucketNight   TimeOfDayBucket = "night"   // 00:00-06:00
	BucketMorning TimeOfDayBucket = "morning" // 06:00-12:00
	BucketAfternoon TimeOfDayBucket = "afternoon" // 12:00-18:00
	BucketEvening TimeOfDayBucket = "evening" // 18:00-24:00
)

package cluster

// ClusteringError reports invalid parameters or an unusable feature matrix.
type ClusteringError struct {
	Reason string
}

func (e *ClusteringError) Error() string {
	return "clustering: " + e.Reason
}

package realtime

import (
	"errors"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// partial entities are tolerated here and filtered one by one later
var unmarshalOptions = proto.UnmarshalOptions{
	AllowPartial:   true,
	DiscardUnknown: true,
}

// decodeFeed parses a GTFS-RT protobuf payload
func decodeFeed(name string, raw []byte) (*gtfs.FeedMessage, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Feed: name, Err: errors.New("empty payload")}
	}

	feed := &gtfs.FeedMessage{}
	if err := unmarshalOptions.Unmarshal(raw, feed); err != nil {
		return nil, &DecodeError{Feed: name, Err: err}
	}

	return feed, nil
}

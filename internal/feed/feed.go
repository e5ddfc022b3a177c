// Package feed exports the tracked departures as a GTFS-Realtime TripUpdates feed.
package feed

import (
	"fmt"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/rodonguyen/FavStop/internal/departure"
	"github.com/rodonguyen/FavStop/internal/translink"
)

const gtfsRealtimeVersion = "2.0"

// Build converts the realtime departures of stops into a full-dataset feed.
// Schedule-only departures carry no realtime information and are skipped.
func Build(stops []translink.StopTimetable, now time.Time) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	for _, stop := range stops {
		for _, d := range stop.Departures {
			if d.Realtime == nil {
				continue
			}
			msg.Entity = append(msg.Entity, &gtfs.FeedEntity{
				Id:         proto.String(fmt.Sprintf("%s:%s", stop.ID, d.ID)),
				TripUpdate: tripUpdate(stop.ID, d),
			})
		}
	}

	return msg
}

func tripUpdate(stopID string, d translink.Departure) *gtfs.TripUpdate {
	rt := d.Realtime

	relationship := gtfs.TripDescriptor_SCHEDULED
	switch {
	case rt.IsCancelled:
		relationship = gtfs.TripDescriptor_CANCELED
	case rt.IsExtra:
		relationship = gtfs.TripDescriptor_ADDED
	}

	tu := &gtfs.TripUpdate{
		Trip: &gtfs.TripDescriptor{
			TripId:               proto.String(d.ID),
			RouteId:              proto.String(d.RouteID),
			ScheduleRelationship: relationship.Enum(),
		},
	}

	// a cancelled trip needs no stop time updates
	if rt.IsCancelled {
		return tu
	}

	stu := &gtfs.TripUpdate_StopTimeUpdate{
		StopId:               proto.String(stopID),
		ScheduleRelationship: gtfs.TripUpdate_StopTimeUpdate_SCHEDULED.Enum(),
	}
	if rt.IsSkipped {
		stu.ScheduleRelationship = gtfs.TripUpdate_StopTimeUpdate_SKIPPED.Enum()
	} else if event := departureEvent(d); event != nil {
		stu.Departure = event
	}

	tu.StopTimeUpdate = []*gtfs.TripUpdate_StopTimeUpdate{stu}
	return tu
}

func departureEvent(d translink.Departure) *gtfs.TripUpdate_StopTimeEvent {
	expected, ok := departure.ParseTimestamp(d.Realtime.ExpectedDepartureUTC)
	if !ok {
		return nil
	}

	event := &gtfs.TripUpdate_StopTimeEvent{
		Time: proto.Int64(expected.Unix()),
	}
	if delay, ok := departure.Delay(d); ok {
		event.Delay = proto.Int32(int32(delay / time.Second))
	}
	return event
}

// Marshal encodes msg in the protobuf wire format
func Marshal(msg *gtfs.FeedMessage) ([]byte, error) {
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return b, nil
}

// MarshalJSON encodes msg as indented protojson
func MarshalJSON(msg *gtfs.FeedMessage) ([]byte, error) {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed as JSON: %w", err)
	}
	return b, nil
}

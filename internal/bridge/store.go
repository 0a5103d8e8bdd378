package bridge

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/quietlawn/rachio-bridge/internal/rachio"
)

// Store is the in-memory hierarchy of Device → Zone entities.
//
// It owns the mapping between cloud IDs and local UIDs: UIDs are derived
// deterministically from the account namespace and the cloud ID, so an
// entity keeps the same UID across rediscovery and process restarts.
//
// A single RWMutex serializes inventory rebuilds against concurrent
// webhook routing and command handling; an event is never routed against
// a half-rebuilt store. Lookups return deep copies, so callers can never
// mutate store state except through the mutator methods, which are the
// entry points into the change dispatcher.
type Store struct {
	mu         sync.RWMutex
	namespace  uuid.UUID
	dispatcher *Dispatcher

	// devices keyed by cloud device ID
	devices map[string]*Device
}

// NewStore creates a store scoped to one cloud account. The dispatcher
// receives every accepted field transition.
func NewStore(accountID string, dispatcher *Dispatcher) *Store {
	return &Store{
		namespace:  uuid.NewSHA1(uuid.NameSpaceURL, []byte("rachio://account/"+accountID)),
		dispatcher: dispatcher,
		devices:    make(map[string]*Device),
	}
}

// uidFor derives the stable local UID for a cloud entity.
func (s *Store) uidFor(kind EntityKind, cloudID string) string {
	return uuid.NewSHA1(s.namespace, []byte(string(kind)+":"+cloudID)).String()
}

// SyncInventory merges a full cloud inventory into the store and returns
// references for entities seen for the first time, parents before
// children. The whole merge happens under one write lock: concurrent
// routing sees either the old or the new inventory, never a mix.
//
// Entities absent from the pull are kept; a cloud-side omission is
// treated as transient, not as a deletion signal.
func (s *Store) SyncInventory(records []rachio.Device) []EntityRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	var discovered []EntityRef

	for i := range records {
		rec := &records[i]
		dev, ok := s.devices[rec.ID]
		if !ok {
			dev = &Device{
				UID:     s.uidFor(KindDevice, rec.ID),
				CloudID: rec.ID,
				Zones:   make(map[string]*Zone),
			}
			s.devices[rec.ID] = dev
			discovered = append(discovered, EntityRef{
				Kind: KindDevice, UID: dev.UID, CloudID: rec.ID, Name: rec.Name,
			})
		}
		s.mergeDevice(dev, rec)

		for j := range rec.Zones {
			zrec := &rec.Zones[j]
			zone, ok := dev.Zones[zrec.ID]
			if !ok {
				zone = &Zone{
					UID:       s.uidFor(KindZone, zrec.ID),
					CloudID:   zrec.ID,
					DeviceUID: dev.UID,
					Number:    zrec.ZoneNumber,
				}
				dev.Zones[zrec.ID] = zone
				discovered = append(discovered, EntityRef{
					Kind: KindZone, UID: zone.UID, CloudID: zrec.ID,
					DeviceUID: dev.UID, Name: zrec.Name,
				})
			}
			s.mergeZone(zone, zrec)
		}
	}

	return discovered
}

// mergeDevice copies mutable fields from the cloud record into the local
// entity. Observable fields pass through the dispatcher; metadata that no
// observer watches is copied silently. Explicit per-field assignment: a
// field the cloud adds is invisible until named here.
func (s *Store) mergeDevice(dev *Device, rec *rachio.Device) {
	dev.Model = rec.Model
	dev.SerialNumber = rec.SerialNumber
	dev.MacAddress = rec.MacAddress
	dev.Latitude = rec.Latitude
	dev.Longitude = rec.Longitude
	dev.ScheduleMode = rec.ScheduleModeType

	ref := dev.Ref()
	ref.Name = rec.Name

	if s.dispatcher.UpdateIfChanged(ref, FieldName, rec.Name) {
		dev.Name = rec.Name
	}
	if s.dispatcher.UpdateIfChanged(ref, FieldStatus, rec.Status) {
		dev.Status = rec.Status
		dev.StatusDetail = ""
	}
	if s.dispatcher.UpdateIfChanged(ref, FieldEnabled, rec.On) {
		dev.Enabled = rec.On
	}
	if s.dispatcher.UpdateIfChanged(ref, FieldPaused, rec.Paused) {
		dev.Paused = rec.Paused
	}
}

// mergeZone is the zone counterpart of mergeDevice.
func (s *Store) mergeZone(zone *Zone, rec *rachio.Zone) {
	zone.Number = rec.ZoneNumber
	zone.ImageURL = rec.ImageURL

	ref := zone.Ref()
	ref.Name = rec.Name

	if s.dispatcher.UpdateIfChanged(ref, FieldName, rec.Name) {
		zone.Name = rec.Name
	}
	if s.dispatcher.UpdateIfChanged(ref, FieldEnabled, rec.Enabled) {
		zone.Enabled = rec.Enabled
	}
	if s.dispatcher.UpdateIfChanged(ref, FieldLastWatered, rec.LastWateredDate) {
		zone.LastWatered = rec.LastWateredDate
	}
}

// Devices returns copies of all devices, sorted by name for stable API
// output.
func (s *Store) Devices() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Device, 0, len(s.devices))
	for _, dev := range s.devices {
		out = append(out, dev.Copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeviceByUID returns a copy of the device with the given local UID.
func (s *Store) DeviceByUID(uid string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, dev := range s.devices {
		if dev.UID == uid {
			return dev.Copy(), nil
		}
	}
	return nil, ErrDeviceNotFound
}

// DeviceByCloudID returns a copy of the device with the given cloud ID.
func (s *Store) DeviceByCloudID(cloudID string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dev, ok := s.devices[cloudID]; ok {
		return dev.Copy(), nil
	}
	return nil, ErrDeviceNotFound
}

// ZoneByUID returns copies of the zone with the given local UID and its
// parent device.
func (s *Store) ZoneByUID(uid string) (*Zone, *Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, dev := range s.devices {
		for _, zone := range dev.Zones {
			if zone.UID == uid {
				return zone.Copy(), dev.Copy(), nil
			}
		}
	}
	return nil, nil, ErrZoneNotFound
}

// ZoneByNumber returns a copy of the zone with the given number within a
// device identified by cloud ID.
func (s *Store) ZoneByNumber(deviceCloudID string, number int) (*Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[deviceCloudID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	for _, zone := range dev.Zones {
		if zone.Number == number {
			return zone.Copy(), nil
		}
	}
	return nil, ErrZoneNotFound
}

// ZoneByCloudID returns a copy of the zone with the given cloud zone ID
// within a device identified by cloud ID.
func (s *Store) ZoneByCloudID(deviceCloudID, zoneCloudID string) (*Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[deviceCloudID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	if zone, ok := dev.Zones[zoneCloudID]; ok {
		return zone.Copy(), nil
	}
	return nil, ErrZoneNotFound
}

// Stats returns entity counts for the metrics endpoint.
func (s *Store) Stats() (devices, zones int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices = len(s.devices)
	for _, dev := range s.devices {
		zones += len(dev.Zones)
	}
	return devices, zones
}

// mutateDevice runs fn against the live device under the write lock.
func (s *Store) mutateDevice(uid string, fn func(*Device)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dev := range s.devices {
		if dev.UID == uid {
			fn(dev)
			return nil
		}
	}
	return ErrDeviceNotFound
}

// mutateZone runs fn against the live zone under the write lock.
func (s *Store) mutateZone(uid string, fn func(*Zone)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dev := range s.devices {
		for _, zone := range dev.Zones {
			if zone.UID == uid {
				fn(zone)
				return nil
			}
		}
	}
	return ErrZoneNotFound
}

// SetDeviceStatus transitions a device's status, with an optional
// human-readable detail (communication-error text and the like).
func (s *Store) SetDeviceStatus(uid, status, detail string) error {
	return s.mutateDevice(uid, func(dev *Device) {
		if s.dispatcher.UpdateIfChanged(dev.Ref(), FieldStatus, status) {
			dev.Status = status
		}
		dev.StatusDetail = detail
	})
}

// SetDevicePaused updates the sleep-mode flag.
func (s *Store) SetDevicePaused(uid string, paused bool) error {
	return s.mutateDevice(uid, func(dev *Device) {
		if s.dispatcher.UpdateIfChanged(dev.Ref(), FieldPaused, paused) {
			dev.Paused = paused
		}
	})
}

// SetDeviceNetwork updates the controller's reported network info.
func (s *Store) SetDeviceNetwork(uid string, network NetworkInfo) error {
	return s.mutateDevice(uid, func(dev *Device) {
		if s.dispatcher.UpdateIfChanged(dev.Ref(), FieldNetwork, network) {
			dev.Network = network
		}
	})
}

// SetDeviceRainDelay records the rain-delay duration in seconds.
func (s *Store) SetDeviceRainDelay(uid string, seconds int) error {
	return s.mutateDevice(uid, func(dev *Device) {
		if s.dispatcher.UpdateIfChanged(dev.Ref(), FieldRainDelay, seconds) {
			dev.RainDelay = seconds
		}
	})
}

// SetDeviceSchedule records the currently running schedule name.
func (s *Store) SetDeviceSchedule(uid, name string) error {
	return s.mutateDevice(uid, func(dev *Device) {
		if s.dispatcher.UpdateIfChanged(dev.Ref(), FieldScheduleName, name) {
			dev.ScheduleName = name
		}
	})
}

// SetDeviceLastEvent records the most recent event summary.
func (s *Store) SetDeviceLastEvent(uid, summary string) error {
	return s.mutateDevice(uid, func(dev *Device) {
		if s.dispatcher.UpdateIfChanged(dev.Ref(), FieldLastEvent, summary) {
			dev.LastEvent = summary
		}
	})
}

// SetDeviceRunTime records the default zone runtime in seconds.
func (s *Store) SetDeviceRunTime(uid string, seconds int) error {
	return s.mutateDevice(uid, func(dev *Device) {
		dev.RunTime = seconds
	})
}

// SetDeviceRunZones records the zone selection for multi-zone runs.
func (s *Store) SetDeviceRunZones(uid, selection string) error {
	return s.mutateDevice(uid, func(dev *Device) {
		dev.RunZones = selection
	})
}

// SetZoneStatus transitions a zone's watering status.
func (s *Store) SetZoneStatus(uid, status string) error {
	return s.mutateZone(uid, func(zone *Zone) {
		if s.dispatcher.UpdateIfChanged(zone.Ref(), FieldStatus, status) {
			zone.Status = status
		}
	})
}

// SetZoneDuration records the last requested run duration in seconds.
func (s *Store) SetZoneDuration(uid string, seconds int) error {
	return s.mutateZone(uid, func(zone *Zone) {
		if s.dispatcher.UpdateIfChanged(zone.Ref(), FieldDuration, seconds) {
			zone.Duration = seconds
		}
	})
}

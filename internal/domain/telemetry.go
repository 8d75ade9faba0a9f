package domain

// Telemetry is one snapshot of vehicle state as reported by the flight computer.
//
// Field order and JSON keys are part of the browser contract and must not change:
// the relay re-serializes the same record it ingested.
type Telemetry struct {
	Yaw         float32 `json:"Yaw" msgpack:"Yaw"`
	Pitch       float32 `json:"Pitch" msgpack:"Pitch"`
	Roll        float32 `json:"Roll" msgpack:"Roll"`
	Temperature uint16  `json:"Temperature" msgpack:"Temperature"`
	Pressure    uint16  `json:"Pressure" msgpack:"Pressure"`
	AccelZ      float32 `json:"AccelZ" msgpack:"AccelZ"`
	GyroX       float32 `json:"GyroX" msgpack:"GyroX"`
	GyroY       float32 `json:"GyroY" msgpack:"GyroY"`
	GyroZ       float32 `json:"GyroZ" msgpack:"GyroZ"`
	QuatX       float32 `json:"QuatX" msgpack:"QuatX"`
	QuatY       float32 `json:"QuatY" msgpack:"QuatY"`
	QuatZ       float32 `json:"QuatZ" msgpack:"QuatZ"`
	QuatS       float32 `json:"QuatS" msgpack:"QuatS"`
	Lat         float32 `json:"Lat" msgpack:"Lat"`
	Lon         float32 `json:"Lon" msgpack:"Lon"`
	State       uint8   `json:"State" msgpack:"State"`
}

package elastic

import (
	jsoniter "github.com/json-iterator/go"
)

// JSON is the codec for request and response bodies.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

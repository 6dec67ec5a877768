package semantic

import (
	"strings"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/WessleyAI/unga-engine/engine/domain"
)

// Payload keys stored on every point.
const (
	keyCountryCode = "country_code"
	keyCountryName = "country_name"
	keyRegion      = "region"
	keySession     = "session"
	keyYear        = "year"
)

func payload(s domain.Speech) map[string]*pb.Value {
	p := map[string]*pb.Value{
		keyCountryCode: stringValue(s.CountryCode),
		keyCountryName: stringValue(s.CountryName),
		keyYear:        intValue(s.Year),
		keySession:     intValue(s.Session),
	}
	if s.Region != "" {
		p[keyRegion] = stringValue(s.Region)
	}
	return p
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

func (f Filter) conditions() []*pb.Condition {
	var must []*pb.Condition
	if len(f.CountryCodes) > 0 {
		codes := make([]string, len(f.CountryCodes))
		for i, c := range f.CountryCodes {
			codes[i] = strings.ToUpper(c)
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   keyCountryCode,
				Match: &pb.Match{MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: codes}}},
			}},
		})
	}
	if len(f.Years) > 0 {
		years := make([]int64, len(f.Years))
		for i, y := range f.Years {
			years[i] = int64(y)
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   keyYear,
				Match: &pb.Match{MatchValue: &pb.Match_Integers{Integers: &pb.RepeatedIntegers{Integers: years}}},
			}},
		})
	}
	return must
}

// Package observability provides OpenTelemetry tracing and metrics
// integration for prockit.
//
// The library records its lifecycle metrics through the global meter
// provider; nothing is exported unless the embedding application installs
// one. InitMeter and InitTracer bootstrap OTLP HTTP exporters for
// applications that want the data shipped:
//
//	mc := observability.DefaultMeterConfig("my-service")
//	mp, err := observability.InitMeter(ctx, &mc)
//	defer mp.Shutdown(ctx)
//
//	tc := observability.DefaultTracerConfig("my-service")
//	tp, err := observability.InitTracer(ctx, &tc)
//	defer tp.Shutdown(ctx)
package observability

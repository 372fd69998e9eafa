/*
Package iso7816 implements data structures and logic to interact with smart cards according to the ISO/IEC 7816 standard.

This package provides the fundamental building blocks for APDU (Application Protocol Data Unit) communication, both directions: parsing a raw Command APDU as a card application would, and encoding/parsing as a host driver would, plus Status Word (SW) classification shared by both sides.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# Client

Client wraps a Transmitter (anything that exchanges raw bytes for raw bytes — a real reader or an in-process card application) and automatically resolves the two transport-level retry conventions of ISO 7816-3: `61XX` (issue GET RESPONSE) and `6CXX` (re-issue with corrected Le). The full exchange is captured in a Trace for inspection.
*/
package iso7816
